// Package user exposes profile reads for the settlement flows: buyer contact
// data for charge creation and the creator's PIX recipient data for payouts.
// Profile capture and validation live in a separate system.
package user

import (
	usermodel "github.com/frahmantamala/packpay/internal/core/datamodel/user"
)

type Repository interface {
	GetByID(id int64) (*usermodel.User, error)
}

// PayoutProfile is the recipient data a payout request needs.
type PayoutProfile struct {
	PixKey            string
	PixKeyType        string
	RecipientName     string
	RecipientDocument string
}

// PayoutProfileFor extracts the recipient data from a profile, reporting
// whether a PIX key is configured at all.
func PayoutProfileFor(u *usermodel.User) (*PayoutProfile, bool) {
	if u.PixKey == nil || *u.PixKey == "" {
		return nil, false
	}
	keyType := ""
	if u.PixKeyType != nil {
		keyType = *u.PixKeyType
	}
	return &PayoutProfile{
		PixKey:            *u.PixKey,
		PixKeyType:        keyType,
		RecipientName:     u.Name,
		RecipientDocument: u.Document,
	}, true
}
