package wallet

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
)

// Repository owns wallet rows. Mutating methods take the caller's transaction
// so balance changes always commit atomically with their ledger entries.
type Repository interface {
	GetByID(id int64) (*walletmodel.Wallet, error)
	GetByUserID(userID int64) (*walletmodel.Wallet, error)
	GetByIDForUpdate(tx *gorm.DB, id int64) (*walletmodel.Wallet, error)
	GetByUserIDForUpdate(tx *gorm.DB, userID int64) (*walletmodel.Wallet, error)
	Create(tx *gorm.DB, w *walletmodel.Wallet) error
	UpdateBalances(tx *gorm.DB, walletID, available, frozen int64) error
}

// PendingPayoutReader reports the total amount of non-terminal payouts for a
// wallet, used in summaries.
type PendingPayoutReader interface {
	PendingTotalByWallet(walletID int64) (int64, error)
}

// LedgerAggregator exposes the ledger sums the wallet summary derives its
// lifetime figures from. Nothing lifetime is stored redundantly.
type LedgerAggregator interface {
	SumByCategory(walletID int64, direction, category string) (int64, error)
}

type Summary struct {
	WalletID         int64 `json:"wallet_id"`
	AvailableBalance int64 `json:"available_balance"`
	FrozenBalance    int64 `json:"frozen_balance"`
	PendingPayouts   int64 `json:"pending_payouts"`
	LifetimeEarnings int64 `json:"lifetime_earnings"`
	LifetimePayouts  int64 `json:"lifetime_payouts"`
}

type Service struct {
	db              *gorm.DB
	repo            Repository
	payouts         PendingPayoutReader
	ledger          LedgerAggregator
	minPayoutAmount int64
	logger          *slog.Logger
}

func NewService(db *gorm.DB, repo Repository, payouts PendingPayoutReader, ledger LedgerAggregator, minPayoutAmount int64, logger *slog.Logger) *Service {
	return &Service{
		db:              db,
		repo:            repo,
		payouts:         payouts,
		ledger:          ledger,
		minPayoutAmount: minPayoutAmount,
		logger:          logger,
	}
}

// GetOrCreateWallet returns the user's wallet under a FOR UPDATE lock,
// creating a zero-balance one on first access. Meant for mutating
// transactions; read paths go through getForRead instead.
func (s *Service) GetOrCreateWallet(tx *gorm.DB, userID int64) (*walletmodel.Wallet, error) {
	w, err := s.repo.GetByUserIDForUpdate(tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load wallet for user %d: %w", userID, err)
	}

	w = &walletmodel.Wallet{UserID: userID}
	if err := s.repo.Create(tx, w); err != nil {
		// lost a creation race; the other writer's row wins
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.GetByUserIDForUpdate(tx, userID)
		}
		return nil, fmt.Errorf("failed to create wallet for user %d: %w", userID, err)
	}

	s.logger.Info("wallet created", "wallet_id", w.ID, "user_id", userID)
	return w, nil
}

// getForRead is the read-path counterpart of GetOrCreateWallet: no row lock,
// no transaction. The lazy create races are resolved the same way, by letting
// the winning row stand.
func (s *Service) getForRead(userID int64) (*walletmodel.Wallet, error) {
	w, err := s.repo.GetByUserID(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load wallet for user %d: %w", userID, err)
	}

	w = &walletmodel.Wallet{UserID: userID}
	if err := s.repo.Create(s.db, w); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.repo.GetByUserID(userID)
		}
		return nil, fmt.Errorf("failed to create wallet for user %d: %w", userID, err)
	}

	s.logger.Info("wallet created", "wallet_id", w.ID, "user_id", userID)
	return w, nil
}

func (s *Service) GetBalance(userID int64) (*walletmodel.Wallet, error) {
	return s.getForRead(userID)
}

func (s *Service) GetWalletSummary(userID int64) (*Summary, error) {
	w, err := s.getForRead(userID)
	if err != nil {
		return nil, err
	}

	pending, err := s.payouts.PendingTotalByWallet(w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum pending payouts: %w", err)
	}

	earnings, err := s.ledger.SumByCategory(w.ID, ledgermodel.DirectionCredit, ledgermodel.CategorySale)
	if err != nil {
		return nil, fmt.Errorf("failed to sum lifetime earnings: %w", err)
	}

	payoutDebits, err := s.ledger.SumByCategory(w.ID, ledgermodel.DirectionDebit, ledgermodel.CategoryPayout)
	if err != nil {
		return nil, fmt.Errorf("failed to sum lifetime payouts: %w", err)
	}
	// failed payouts are credited back as adjustments; net them out
	adjustments, err := s.ledger.SumByCategory(w.ID, ledgermodel.DirectionCredit, ledgermodel.CategoryAdjustment)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payout adjustments: %w", err)
	}

	return &Summary{
		WalletID:         w.ID,
		AvailableBalance: w.AvailableBalance,
		FrozenBalance:    w.FrozenBalance,
		PendingPayouts:   pending,
		LifetimeEarnings: earnings,
		LifetimePayouts:  payoutDebits - adjustments,
	}, nil
}

// ValidatePayoutAmount rejects amounts below the minimum threshold or above
// the available balance. The payout path re-checks sufficiency under a row
// lock; this is the fast pre-flight.
func (s *Service) ValidatePayoutAmount(userID, amount int64) error {
	if amount < s.minPayoutAmount {
		return apperrors.NewValidationError(
			fmt.Sprintf("minimum payout amount is %d cents", s.minPayoutAmount),
			apperrors.ErrCodeBelowMinimumPayout)
	}

	w, err := s.getForRead(userID)
	if err != nil {
		return apperrors.NewInternalError("failed to load wallet", err)
	}

	if amount > w.AvailableBalance {
		return apperrors.NewValidationError("insufficient available balance", apperrors.ErrCodeInsufficientBalance)
	}
	return nil
}

// CreditFrozen adds creator earnings to the anti-fraud escrow.
func (s *Service) CreditFrozen(tx *gorm.DB, walletID, amount int64) (*walletmodel.Wallet, error) {
	return s.adjust(tx, walletID, 0, amount)
}

// DebitFrozen removes escrowed funds, used when a not-yet-released sale is
// refunded.
func (s *Service) DebitFrozen(tx *gorm.DB, walletID, amount int64) (*walletmodel.Wallet, error) {
	return s.adjust(tx, walletID, 0, -amount)
}

func (s *Service) CreditAvailable(tx *gorm.DB, walletID, amount int64) (*walletmodel.Wallet, error) {
	return s.adjust(tx, walletID, amount, 0)
}

func (s *Service) DebitAvailable(tx *gorm.DB, walletID, amount int64) (*walletmodel.Wallet, error) {
	return s.adjust(tx, walletID, -amount, 0)
}

// ReleaseFrozen moves funds from escrow to the withdrawable balance. The
// wallet total is unchanged.
func (s *Service) ReleaseFrozen(tx *gorm.DB, walletID, amount int64) (*walletmodel.Wallet, error) {
	return s.adjust(tx, walletID, amount, -amount)
}

func (s *Service) adjust(tx *gorm.DB, walletID, availableDelta, frozenDelta int64) (*walletmodel.Wallet, error) {
	w, err := s.repo.GetByIDForUpdate(tx, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet %d: %w", walletID, err)
	}

	newAvailable := w.AvailableBalance + availableDelta
	newFrozen := w.FrozenBalance + frozenDelta
	if newAvailable < 0 || newFrozen < 0 {
		return nil, fmt.Errorf("wallet %d balance would go negative (available %d, frozen %d)", walletID, newAvailable, newFrozen)
	}

	if err := s.repo.UpdateBalances(tx, walletID, newAvailable, newFrozen); err != nil {
		return nil, fmt.Errorf("failed to update wallet %d balances: %w", walletID, err)
	}

	w.AvailableBalance = newAvailable
	w.FrozenBalance = newFrozen
	return w, nil
}
