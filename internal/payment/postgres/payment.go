package postgres

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *paymentmodel.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id int64) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetPaidByBuyerAndPack(buyerID, packID int64) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.
		Where("buyer_id = ? AND pack_id = ? AND status = ?", buyerID, packID, paymentmodel.StatusPaid).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetPendingByBuyerAndPack(buyerID, packID int64) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.
		Where("buyer_id = ? AND pack_id = ? AND status = ?", buyerID, packID, paymentmodel.StatusPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&paymentmodel.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
}

// Transactional accessors used by the webhook processor. Reads take a row lock
// so the state-guard check and the update cannot interleave with a concurrent
// event for the same payment.

func (r *PaymentRepository) GetByGatewayIDForUpdate(tx *gorm.DB, provider, gatewayID string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := lockedQuery(tx).
		Where("provider = ? AND gateway_transaction_id = ?", provider, gatewayID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) MarkPaid(tx *gorm.DB, id int64, paidAt time.Time) error {
	return tx.Model(&paymentmodel.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     paymentmodel.StatusPaid,
		"paid_at":    paidAt,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *PaymentRepository) UpdateStatusTx(tx *gorm.DB, id int64, status string) error {
	return tx.Model(&paymentmodel.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *PaymentRepository) MarkRefunded(tx *gorm.DB, id int64, refundedAt time.Time) error {
	return tx.Model(&paymentmodel.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      paymentmodel.StatusRefunded,
		"refunded_at": refundedAt,
		"updated_at":  time.Now().UTC(),
	}).Error
}

// Release-job accessors.

func (r *PaymentRepository) ListDueForRelease(now time.Time, limit int) ([]*paymentmodel.Payment, error) {
	var payments []*paymentmodel.Payment
	err := r.db.
		Where("status = ? AND balance_released = ? AND available_at <= ?", paymentmodel.StatusPaid, false, now).
		Order("available_at ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *PaymentRepository) GetForRelease(tx *gorm.DB, id int64) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := lockedQuery(tx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) MarkReleased(tx *gorm.DB, id int64) error {
	return tx.Model(&paymentmodel.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"balance_released": true,
		"updated_at":       time.Now().UTC(),
	}).Error
}

// lockedQuery adds SELECT ... FOR UPDATE where the dialect supports it. SQLite
// is single-writer, so the clause is skipped there.
func lockedQuery(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
