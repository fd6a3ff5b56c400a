package user

import (
	"time"
)

// User is the profile record owned by the identity service. Settlement reads
// buyer data for charge creation and the creator's PIX key for payouts; it
// never validates or mutates these fields.
type User struct {
	ID           int64     `gorm:"primaryKey"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;not null"`
	PasswordHash string    `gorm:"column:password_hash"`
	Document     string    `gorm:"column:document"`
	PixKey       *string   `gorm:"column:pix_key"`
	PixKeyType   *string   `gorm:"column:pix_key_type"`
	IsActive     bool      `gorm:"column:is_active;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}
