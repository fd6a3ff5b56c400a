package postgres

import (
	"gorm.io/gorm"

	webhookmodel "github.com/frahmantamala/packpay/internal/core/datamodel/webhook"
	webhookpkg "github.com/frahmantamala/packpay/internal/webhook"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) webhookpkg.Repository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Exists(provider, eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&webhookmodel.Event{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *WebhookRepository) Create(tx *gorm.DB, ev *webhookmodel.Event) error {
	return tx.Create(ev).Error
}
