package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
	"github.com/frahmantamala/packpay/internal/gateway"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	userpkg "github.com/frahmantamala/packpay/internal/user"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
)

type Repository interface {
	Create(tx *gorm.DB, po *payoutmodel.Payout) error
	GetByID(id int64) (*payoutmodel.Payout, error)
	ListByCreator(creatorID int64, limit, offset int) ([]*payoutmodel.Payout, error)
	SetProcessing(id int64, gatewayID string) error
	MarkFailed(tx *gorm.DB, id int64, reason string, failedAt time.Time) error
	PendingTotalByWallet(walletID int64) (int64, error)
}

// Reconciler applies a polled provider payout status with the same side
// effects the corresponding webhook would have.
type Reconciler interface {
	ReconcilePayoutStatus(ctx context.Context, po *payoutmodel.Payout, result *gateway.PayoutStatusResult) (*payoutmodel.Payout, error)
}

type Service struct {
	db         *gorm.DB
	repo       Repository
	wallets    *walletpkg.Service
	users      userpkg.Repository
	ledger     *ledgerpkg.Service
	registry   *gateway.Registry
	reconciler Reconciler
	logger     *slog.Logger
}

func NewService(
	db *gorm.DB,
	repo Repository,
	wallets *walletpkg.Service,
	users userpkg.Repository,
	ledger *ledgerpkg.Service,
	registry *gateway.Registry,
	reconciler Reconciler,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		wallets:    wallets,
		users:      users,
		ledger:     ledger,
		registry:   registry,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RequestPayout debits the creator's available balance and sends the transfer
// to the provider. The local debit commits before the provider call; a failed
// call is compensated by an explicit second transaction, because the debit
// and the remote transfer cannot be made atomic.
func (s *Service) RequestPayout(ctx context.Context, userID, amount int64) (*View, error) {
	if err := s.wallets.ValidatePayoutAmount(userID, amount); err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewInternalError("failed to validate payout amount", err)
	}

	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("User not found", apperrors.ErrCodeUserNotFound)
		}
		return nil, apperrors.NewInternalError("failed to load user profile", err)
	}
	profile, ok := userpkg.PayoutProfileFor(u)
	if !ok {
		return nil, apperrors.NewValidationError("PIX key is not configured on your profile", apperrors.ErrCodePixKeyNotConfigured)
	}

	adapter, err := s.registry.Active()
	if err != nil {
		return nil, apperrors.NewInternalError("payment provider misconfigured", err)
	}

	now := time.Now().UTC()
	po := &payoutmodel.Payout{
		CreatorID:         userID,
		Amount:            amount,
		Provider:          adapter.Name(),
		ExternalID:        uuid.NewString(),
		PixKey:            profile.PixKey,
		PixKeyType:        profile.PixKeyType,
		RecipientName:     profile.RecipientName,
		RecipientDocument: profile.RecipientDocument,
		Status:            payoutmodel.StatusPending,
		RequestedAt:       now,
	}

	// serializable + FOR UPDATE: two concurrent requests against the same
	// wallet must not both pass the sufficiency check
	err = s.db.Transaction(func(tx *gorm.DB) error {
		w, err := s.wallets.GetOrCreateWallet(tx, userID)
		if err != nil {
			return err
		}
		if amount > w.AvailableBalance {
			return apperrors.NewValidationError("insufficient available balance", apperrors.ErrCodeInsufficientBalance)
		}

		w, err = s.wallets.DebitAvailable(tx, w.ID, amount)
		if err != nil {
			return err
		}

		po.WalletID = w.ID
		if err := s.repo.Create(tx, po); err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}

		return s.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
			WalletID:     &w.ID,
			Direction:    ledgermodel.DirectionDebit,
			Category:     ledgermodel.CategoryPayout,
			Amount:       amount,
			BalanceAfter: w.TotalBalance(),
			PayoutID:     &po.ID,
			Description:  fmt.Sprintf("payout request %d", po.ID),
		})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		if appErr, ok := apperrors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewInternalError("failed to reserve payout funds", err)
	}

	s.logger.Info("payout funds reserved",
		"payout_id", po.ID,
		"wallet_id", po.WalletID,
		"creator_id", userID,
		"amount", amount,
		"provider", po.Provider)

	result, execErr := adapter.ExecutePayout(ctx, gateway.PayoutRequest{
		Amount:            amount,
		ExternalID:        po.ExternalID,
		PixKey:            profile.PixKey,
		PixKeyType:        profile.PixKeyType,
		RecipientName:     profile.RecipientName,
		RecipientDocument: profile.RecipientDocument,
		Description:       fmt.Sprintf("Creator payout %d", po.ID),
	})
	if execErr != nil {
		s.logger.Error("payout execution failed, compensating",
			"payout_id", po.ID,
			"provider", po.Provider,
			"error", execErr)
		if compErr := s.compensate(po, execErr); compErr != nil {
			// funds stay debited with the payout still pending; manual
			// reconciliation picks it up via the ledger
			s.logger.Error("payout compensation failed",
				"payout_id", po.ID,
				"amount", amount,
				"error", compErr)
			return nil, apperrors.NewInternalError("payout failed and compensation did not complete", compErr)
		}
		return nil, apperrors.NewExternalError("payout could not be executed, the amount was returned to your balance", apperrors.ErrCodePayoutFailed)
	}

	if err := s.repo.SetProcessing(po.ID, result.GatewayID); err != nil {
		return nil, apperrors.NewInternalError("failed to record payout execution", err)
	}
	po.Status = payoutmodel.StatusProcessing
	po.GatewayTransactionID = result.GatewayID

	s.logger.Info("payout submitted",
		"payout_id", po.ID,
		"gateway_id", result.GatewayID,
		"amount", amount)

	return toView(po), nil
}

// compensate restores the debited balance after a provider-side failure.
func (s *Service) compensate(po *payoutmodel.Payout, cause error) error {
	reason := cause.Error()
	if gwErr, ok := gateway.IsGatewayError(cause); ok {
		reason = fmt.Sprintf("%s: %s", gwErr.Code, gwErr.Message)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.MarkFailed(tx, po.ID, reason, time.Now().UTC()); err != nil {
			return err
		}

		w, err := s.wallets.CreditAvailable(tx, po.WalletID, po.Amount)
		if err != nil {
			return err
		}

		return s.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
			WalletID:     &w.ID,
			Direction:    ledgermodel.DirectionCredit,
			Category:     ledgermodel.CategoryAdjustment,
			Amount:       po.Amount,
			BalanceAfter: w.TotalBalance(),
			PayoutID:     &po.ID,
			Description:  fmt.Sprintf("compensation for failed payout %d", po.ID),
		})
	})
}

// GetPayout returns a payout to its creator, polling the provider first when
// the payout is still in flight. Provider errors fall back to stored state.
func (s *Service) GetPayout(ctx context.Context, payoutID, callerID int64) (*View, error) {
	po, err := s.repo.GetByID(payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPayoutNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payout", err)
	}
	if po.CreatorID != callerID {
		return nil, apperrors.ErrUnauthorizedAccess
	}

	if po.IsTerminal() || po.GatewayTransactionID == "" {
		return toView(po), nil
	}

	adapter, err := s.registry.Get(po.Provider)
	if err != nil {
		s.logger.Error("payout provider no longer registered", "payout_id", po.ID, "provider", po.Provider)
		return toView(po), nil
	}

	result, err := adapter.GetPayoutStatus(ctx, po.GatewayTransactionID)
	if err != nil {
		s.logger.Warn("payout status poll failed, serving stored status",
			"payout_id", po.ID,
			"provider", po.Provider,
			"error", err)
		return toView(po), nil
	}

	if string(result.Status) == po.Status {
		return toView(po), nil
	}

	updated, err := s.reconciler.ReconcilePayoutStatus(ctx, po, result)
	if err != nil {
		s.logger.Error("payout reconciliation failed, serving stored status",
			"payout_id", po.ID,
			"provider_status", string(result.Status),
			"error", err)
		return toView(po), nil
	}
	return toView(updated), nil
}

func (s *Service) ListPayouts(userID int64, limit, offset int) ([]*View, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	payouts, err := s.repo.ListByCreator(userID, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list payouts", err)
	}

	views := make([]*View, 0, len(payouts))
	for _, po := range payouts {
		views = append(views, toView(po))
	}
	return views, nil
}
