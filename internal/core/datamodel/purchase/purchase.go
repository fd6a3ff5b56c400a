package purchase

import (
	"time"
)

const (
	StatusPaid     = "paid"
	StatusRefunded = "refunded"
)

// Purchase is the legacy card-checkout record, kept only so the PIX checkout
// path can reject buyers who already own a pack through the old flow.
type Purchase struct {
	ID        int64     `gorm:"primaryKey"`
	BuyerID   int64     `gorm:"column:buyer_id;not null;index:idx_purchases_buyer_pack,priority:1"`
	PackID    int64     `gorm:"column:pack_id;not null;index:idx_purchases_buyer_pack,priority:2"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Purchase) TableName() string {
	return "purchases"
}
