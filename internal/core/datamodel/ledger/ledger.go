package ledger

import (
	"time"
)

const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

const (
	CategorySale        = "SALE"
	CategoryPlatformFee = "PLATFORM_FEE"
	CategoryPayout      = "PAYOUT"
	CategoryRefund      = "REFUND"
	CategoryAdjustment  = "ADJUSTMENT"
	CategoryRelease     = "RELEASE"
)

// Entry is one immutable double-entry row. WalletID is nil for platform-only
// entries (e.g. the fee slice of a sale). Rows are never updated or deleted.
type Entry struct {
	ID           int64      `gorm:"primaryKey"`
	WalletID     *int64     `gorm:"column:wallet_id;index"`
	Direction    string     `gorm:"column:direction;not null"`
	Category     string     `gorm:"column:category;not null;index"`
	Amount       int64      `gorm:"column:amount;not null"`
	BalanceAfter int64      `gorm:"column:balance_after;not null"`
	PaymentID    *int64     `gorm:"column:payment_id;index"`
	PayoutID     *int64     `gorm:"column:payout_id;index"`
	Description  string     `gorm:"column:description"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
}

func (Entry) TableName() string {
	return "ledger_entries"
}
