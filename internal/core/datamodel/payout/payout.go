package payout

import (
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Payout is one creator withdrawal to a PIX key. The available balance is
// debited in the same transaction that creates the row; a failed provider
// call reverses the debit via compensation.
type Payout struct {
	ID                   int64      `gorm:"primaryKey"`
	CreatorID            int64      `gorm:"column:creator_id;not null;index"`
	WalletID             int64      `gorm:"column:wallet_id;not null;index"`
	Amount               int64      `gorm:"column:amount;not null"`
	Provider             string     `gorm:"column:provider;not null"`
	ExternalID           string     `gorm:"column:external_id;not null;uniqueIndex"`
	GatewayTransactionID string     `gorm:"column:gateway_transaction_id;index"`
	PixKey               string     `gorm:"column:pix_key;not null"`
	PixKeyType           string     `gorm:"column:pix_key_type;not null"`
	RecipientName        string     `gorm:"column:recipient_name;not null"`
	RecipientDocument    string     `gorm:"column:recipient_document;not null"`
	Status               string     `gorm:"column:status;default:pending;index"`
	FailureReason        *string    `gorm:"column:failure_reason"`
	RequestedAt          time.Time  `gorm:"column:requested_at"`
	CompletedAt          *time.Time `gorm:"column:completed_at"`
	FailedAt             *time.Time `gorm:"column:failed_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Payout) TableName() string {
	return "payouts"
}

func (p *Payout) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}
