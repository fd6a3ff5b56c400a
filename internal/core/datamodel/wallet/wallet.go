package wallet

import (
	"time"
)

// Wallet holds a creator's balances in cents. FrozenBalance is the anti-fraud
// escrow; AvailableBalance is withdrawable. Both must stay >= 0 and their sum
// must always equal the wallet's net ledger credits.
type Wallet struct {
	ID               int64     `gorm:"primaryKey"`
	UserID           int64     `gorm:"column:user_id;not null;uniqueIndex"`
	AvailableBalance int64     `gorm:"column:available_balance;not null;default:0"`
	FrozenBalance    int64     `gorm:"column:frozen_balance;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time `gorm:"column:updated_at;default:now()"`
}

func (Wallet) TableName() string {
	return "wallets"
}

func (w *Wallet) TotalBalance() int64 {
	return w.AvailableBalance + w.FrozenBalance
}
