package postgres

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(tx *gorm.DB, po *payoutmodel.Payout) error {
	return tx.Create(po).Error
}

func (r *PayoutRepository) GetByID(id int64) (*payoutmodel.Payout, error) {
	var po payoutmodel.Payout
	err := r.db.First(&po, id).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PayoutRepository) ListByCreator(creatorID int64, limit, offset int) ([]*payoutmodel.Payout, error) {
	var payouts []*payoutmodel.Payout
	err := r.db.
		Where("creator_id = ?", creatorID).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *PayoutRepository) SetProcessing(id int64, gatewayID string) error {
	return r.db.Model(&payoutmodel.Payout{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":                 payoutmodel.StatusProcessing,
		"gateway_transaction_id": gatewayID,
		"updated_at":             time.Now().UTC(),
	}).Error
}

func (r *PayoutRepository) MarkFailed(tx *gorm.DB, id int64, reason string, failedAt time.Time) error {
	return tx.Model(&payoutmodel.Payout{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         payoutmodel.StatusFailed,
		"failure_reason": reason,
		"failed_at":      failedAt,
		"updated_at":     time.Now().UTC(),
	}).Error
}

// PendingTotalByWallet sums every non-terminal payout, used by the wallet
// summary.
func (r *PayoutRepository) PendingTotalByWallet(walletID int64) (int64, error) {
	var total int64
	err := r.db.Model(&payoutmodel.Payout{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("wallet_id = ? AND status IN ?", walletID, []string{payoutmodel.StatusPending, payoutmodel.StatusProcessing}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Transactional accessors used by the webhook processor.

func (r *PayoutRepository) GetByGatewayIDForUpdate(tx *gorm.DB, provider, gatewayID string) (*payoutmodel.Payout, error) {
	var po payoutmodel.Payout
	err := lockedQuery(tx).
		Where("provider = ? AND gateway_transaction_id = ?", provider, gatewayID).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PayoutRepository) GetByExternalIDForUpdate(tx *gorm.DB, provider, externalID string) (*payoutmodel.Payout, error) {
	var po payoutmodel.Payout
	err := lockedQuery(tx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&po).Error
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *PayoutRepository) SetGatewayID(tx *gorm.DB, id int64, gatewayID string) error {
	return tx.Model(&payoutmodel.Payout{}).Where("id = ?", id).Updates(map[string]interface{}{
		"gateway_transaction_id": gatewayID,
		"updated_at":             time.Now().UTC(),
	}).Error
}

func (r *PayoutRepository) MarkCompleted(tx *gorm.DB, id int64, completedAt time.Time) error {
	return tx.Model(&payoutmodel.Payout{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       payoutmodel.StatusCompleted,
		"completed_at": completedAt,
		"updated_at":   time.Now().UTC(),
	}).Error
}

func (r *PayoutRepository) UpdateStatusTx(tx *gorm.DB, id int64, status string) error {
	return tx.Model(&payoutmodel.Payout{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
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
