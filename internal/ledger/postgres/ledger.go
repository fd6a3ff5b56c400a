package postgres

import (
	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ledgerpkg.Repository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(tx *gorm.DB, entry *ledgermodel.Entry) error {
	return tx.Create(entry).Error
}

func (r *LedgerRepository) SumByDirection(walletID int64) (int64, int64, error) {
	var credits, debits int64

	err := r.db.Model(&ledgermodel.Entry{}).
		Where("wallet_id = ? AND direction = ?", walletID, ledgermodel.DirectionCredit).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&credits).Error
	if err != nil {
		return 0, 0, err
	}

	err = r.db.Model(&ledgermodel.Entry{}).
		Where("wallet_id = ? AND direction = ?", walletID, ledgermodel.DirectionDebit).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&debits).Error
	if err != nil {
		return 0, 0, err
	}

	return credits, debits, nil
}

func (r *LedgerRepository) SumByCategory(walletID int64, direction, category string) (int64, error) {
	var total int64
	err := r.db.Model(&ledgermodel.Entry{}).
		Where("wallet_id = ? AND direction = ? AND category = ?", walletID, direction, category).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *LedgerRepository) ListByWallet(walletID int64, limit, offset int) ([]*ledgermodel.Entry, error) {
	var entries []*ledgermodel.Entry
	err := r.db.Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
