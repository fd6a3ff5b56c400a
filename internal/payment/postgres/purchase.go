package postgres

import (
	"gorm.io/gorm"

	purchasemodel "github.com/frahmantamala/packpay/internal/core/datamodel/purchase"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) HasPaidPurchase(buyerID, packID int64) (bool, error) {
	var count int64
	err := r.db.Model(&purchasemodel.Purchase{}).
		Where("buyer_id = ? AND pack_id = ? AND status = ?", buyerID, packID, purchasemodel.StatusPaid).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
