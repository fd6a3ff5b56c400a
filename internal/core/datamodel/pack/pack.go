package pack

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Pack is the catalog entry for a digital content pack. The settlement service
// only reads packs; catalog mutation lives elsewhere.
type Pack struct {
	ID        int64     `gorm:"primaryKey"`
	CreatorID int64     `gorm:"column:creator_id;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Price     int64     `gorm:"column:price;not null"`
	Status    string    `gorm:"column:status;default:draft"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:now()"`
}

func (Pack) TableName() string {
	return "packs"
}

func (p *Pack) IsPublished() bool {
	return p.Status == StatusPublished
}
