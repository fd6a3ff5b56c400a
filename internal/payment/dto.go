package payment

import (
	"time"

	errors "github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/core/common/validation"
	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
)

type CheckoutRequest struct {
	PackID int64 `json:"pack_id"`
}

func (r *CheckoutRequest) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("pack_id", r.PackID).
		Required().
		MinInt(1, errors.ErrCodeValidationFailed)
	return v.Validate()
}

// View is the payment shape returned to the buyer. Gateway transaction ids and
// fee breakdowns stay internal.
type View struct {
	ID         int64      `json:"id"`
	PackID     int64      `json:"pack_id"`
	Amount     int64      `json:"amount"`
	Provider   string     `json:"provider"`
	Status     string     `json:"status"`
	QRCode     string     `json:"qr_code,omitempty"`
	QRCodeText string     `json:"qr_code_text,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toView(p *paymentmodel.Payment) *View {
	return &View{
		ID:         p.ID,
		PackID:     p.PackID,
		Amount:     p.Amount,
		Provider:   p.Provider,
		Status:     p.Status,
		QRCode:     p.QRCode,
		QRCodeText: p.QRCodeText,
		ExpiresAt:  p.ExpiresAt,
		PaidAt:     p.PaidAt,
		CreatedAt:  p.CreatedAt,
	}
}
