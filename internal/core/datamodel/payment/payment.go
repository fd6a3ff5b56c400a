package payment

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// Payment is one PIX charge for a pack purchase. Rows are created on checkout
// and mutated only by webhook processing or the balance release job.
type Payment struct {
	ID                   int64      `gorm:"primaryKey"`
	BuyerID              int64      `gorm:"column:buyer_id;not null;index:idx_payments_buyer_pack,priority:1"`
	CreatorID            int64      `gorm:"column:creator_id;not null;index"`
	PackID               int64      `gorm:"column:pack_id;not null;index:idx_payments_buyer_pack,priority:2"`
	Amount               int64      `gorm:"column:amount;not null"`
	PlatformFee          int64      `gorm:"column:platform_fee;not null"`
	CreatorEarnings      int64      `gorm:"column:creator_earnings;not null"`
	Provider             string     `gorm:"column:provider;not null"`
	ExternalID           string     `gorm:"column:external_id;not null;uniqueIndex"`
	GatewayTransactionID string     `gorm:"column:gateway_transaction_id;index"`
	QRCode               string     `gorm:"column:qr_code"`
	QRCodeText           string     `gorm:"column:qr_code_text"`
	ExpiresAt            time.Time  `gorm:"column:expires_at"`
	Status               string     `gorm:"column:status;default:pending;index"`
	PaidAt               *time.Time `gorm:"column:paid_at"`
	AvailableAt          *time.Time `gorm:"column:available_at;index"`
	RefundedAt           *time.Time `gorm:"column:refunded_at"`
	BalanceReleased      bool       `gorm:"column:balance_released;default:false"`
	CreatedAt            time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == StatusPending && now.After(p.ExpiresAt)
}

func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusExpired, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
