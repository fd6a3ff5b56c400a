package payout

import (
	"time"

	errors "github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/core/common/validation"
	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
)

type Request struct {
	Amount int64 `json:"amount"`
}

func (r *Request) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("amount", r.Amount).
		Required().
		MinInt(1, errors.ErrCodeInvalidAmount)
	return v.Validate()
}

type View struct {
	ID            int64      `json:"id"`
	Amount        int64      `json:"amount"`
	Provider      string     `json:"provider"`
	PixKey        string     `json:"pix_key"`
	PixKeyType    string     `json:"pix_key_type"`
	Status        string     `json:"status"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toView(p *payoutmodel.Payout) *View {
	return &View{
		ID:            p.ID,
		Amount:        p.Amount,
		Provider:      p.Provider,
		PixKey:        p.PixKey,
		PixKeyType:    p.PixKeyType,
		Status:        p.Status,
		FailureReason: p.FailureReason,
		RequestedAt:   p.RequestedAt,
		CompletedAt:   p.CompletedAt,
	}
}
