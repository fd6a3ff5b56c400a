package ledger

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
)

// Repository persists immutable ledger rows. Mutating methods take the
// caller's transaction explicitly: a ledger entry never stands alone, it
// always accompanies the balance change it records.
type Repository interface {
	Create(tx *gorm.DB, entry *ledgermodel.Entry) error
	SumByDirection(walletID int64) (credits int64, debits int64, err error)
	SumByCategory(walletID int64, direction, category string) (int64, error)
	ListByWallet(walletID int64, limit, offset int) ([]*ledgermodel.Entry, error)
}

type WalletReader interface {
	GetByID(id int64) (*walletmodel.Wallet, error)
}

type EntryParams struct {
	WalletID     *int64
	Direction    string
	Category     string
	Amount       int64
	BalanceAfter int64
	PaymentID    *int64
	PayoutID     *int64
	Description  string
}

var validCategories = map[string]bool{
	ledgermodel.CategorySale:        true,
	ledgermodel.CategoryPlatformFee: true,
	ledgermodel.CategoryPayout:      true,
	ledgermodel.CategoryRefund:      true,
	ledgermodel.CategoryAdjustment:  true,
	ledgermodel.CategoryRelease:     true,
}

type Service struct {
	repo    Repository
	wallets WalletReader
	logger  *slog.Logger
}

func NewService(repo Repository, wallets WalletReader, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		wallets: wallets,
		logger:  logger,
	}
}

// CreateEntry appends one immutable row inside the caller's transaction. It
// never opens a transaction of its own.
func (s *Service) CreateEntry(tx *gorm.DB, p EntryParams) error {
	if p.Direction != ledgermodel.DirectionCredit && p.Direction != ledgermodel.DirectionDebit {
		return fmt.Errorf("invalid ledger direction %q", p.Direction)
	}
	if !validCategories[p.Category] {
		return fmt.Errorf("invalid ledger category %q", p.Category)
	}
	// RELEASE rows carry amount 0: they reclassify frozen vs available
	// without creating new value.
	if p.Amount < 0 {
		return fmt.Errorf("ledger amount cannot be negative: %d", p.Amount)
	}

	entry := &ledgermodel.Entry{
		WalletID:     p.WalletID,
		Direction:    p.Direction,
		Category:     p.Category,
		Amount:       p.Amount,
		BalanceAfter: p.BalanceAfter,
		PaymentID:    p.PaymentID,
		PayoutID:     p.PayoutID,
		Description:  p.Description,
	}

	if err := s.repo.Create(tx, entry); err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	s.logger.Info("ledger entry created",
		"entry_id", entry.ID,
		"wallet_id", p.WalletID,
		"direction", p.Direction,
		"category", p.Category,
		"amount", p.Amount,
		"payment_id", p.PaymentID,
		"payout_id", p.PayoutID)

	return nil
}

// VerifyWalletIntegrity recomputes sum(CREDIT)-sum(DEBIT) for a wallet and
// returns the delta against availableBalance+frozenBalance. Zero means the
// ledger and the wallet agree. Used by reconciliation, not on the hot path.
func (s *Service) VerifyWalletIntegrity(walletID int64) (int64, error) {
	w, err := s.wallets.GetByID(walletID)
	if err != nil {
		return 0, fmt.Errorf("failed to load wallet %d: %w", walletID, err)
	}

	credits, debits, err := s.repo.SumByDirection(walletID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger for wallet %d: %w", walletID, err)
	}

	delta := (credits - debits) - w.TotalBalance()
	if delta != 0 {
		s.logger.Error("wallet integrity mismatch",
			"wallet_id", walletID,
			"ledger_net", credits-debits,
			"wallet_total", w.TotalBalance(),
			"delta", delta)
	}
	return delta, nil
}

// ListWalletEntries returns a page of a wallet's transaction history, newest
// first.
func (s *Service) ListWalletEntries(walletID int64, limit, offset int) ([]*ledgermodel.Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByWallet(walletID, limit, offset)
}

// SumByCategory exposes ledger aggregates for wallet summaries.
func (s *Service) SumByCategory(walletID int64, direction, category string) (int64, error) {
	return s.repo.SumByCategory(walletID, direction, category)
}
