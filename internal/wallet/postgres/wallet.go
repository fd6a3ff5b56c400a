package postgres

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) walletpkg.Repository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByID(id int64) (*walletmodel.Wallet, error) {
	var w walletmodel.Wallet
	err := r.db.First(&w, id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByUserID(userID int64) (*walletmodel.Wallet, error) {
	var w walletmodel.Wallet
	err := r.db.Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByIDForUpdate(tx *gorm.DB, id int64) (*walletmodel.Wallet, error) {
	var w walletmodel.Wallet
	err := lockedQuery(tx).Where("id = ?", id).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByUserIDForUpdate(tx *gorm.DB, userID int64) (*walletmodel.Wallet, error) {
	var w walletmodel.Wallet
	err := lockedQuery(tx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Create(tx *gorm.DB, w *walletmodel.Wallet) error {
	return tx.Create(w).Error
}

func (r *WalletRepository) UpdateBalances(tx *gorm.DB, walletID, available, frozen int64) error {
	return tx.Model(&walletmodel.Wallet{}).Where("id = ?", walletID).Updates(map[string]interface{}{
		"available_balance": available,
		"frozen_balance":    frozen,
		"updated_at":        time.Now().UTC(),
	}).Error
}

// lockedQuery adds SELECT ... FOR UPDATE on dialects that support row locks.
// SQLite (used by the test suites) has a single-writer model, so the lock
// clause is both unsupported and unnecessary there.
func lockedQuery(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
