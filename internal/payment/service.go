package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	packmodel "github.com/frahmantamala/packpay/internal/core/datamodel/pack"
	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
	usermodel "github.com/frahmantamala/packpay/internal/core/datamodel/user"
	"github.com/frahmantamala/packpay/internal/gateway"
)

type Repository interface {
	Create(p *paymentmodel.Payment) error
	GetByID(id int64) (*paymentmodel.Payment, error)
	GetPaidByBuyerAndPack(buyerID, packID int64) (*paymentmodel.Payment, error)
	GetPendingByBuyerAndPack(buyerID, packID int64) (*paymentmodel.Payment, error)
	UpdateStatus(id int64, status string) error
}

type PackReader interface {
	GetByID(id int64) (*packmodel.Pack, error)
}

type UserReader interface {
	GetByID(id int64) (*usermodel.User, error)
}

// LegacyPurchaseReader checks the old card-checkout records so a buyer who
// already owns a pack through that flow cannot buy it again over PIX.
type LegacyPurchaseReader interface {
	HasPaidPurchase(buyerID, packID int64) (bool, error)
}

// Reconciler applies a provider-reported status to a local payment with the
// same side effects a webhook for that status would have. The webhook
// processor provides the implementation so the poll path and the push path
// cannot drift apart.
type Reconciler interface {
	ReconcilePaymentStatus(ctx context.Context, p *paymentmodel.Payment, result *gateway.PaymentStatusResult) (*paymentmodel.Payment, error)
}

type Service struct {
	repo          Repository
	packs         PackReader
	users         UserReader
	purchases     LegacyPurchaseReader
	registry      *gateway.Registry
	reconciler    Reconciler
	feePercent    float64
	holdDays      int
	expiryMinutes int
	logger        *slog.Logger
}

func NewService(
	repo Repository,
	packs PackReader,
	users UserReader,
	purchases LegacyPurchaseReader,
	registry *gateway.Registry,
	reconciler Reconciler,
	feePercent float64,
	holdDays int,
	expiryMinutes int,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:          repo,
		packs:         packs,
		users:         users,
		purchases:     purchases,
		registry:      registry,
		reconciler:    reconciler,
		feePercent:    feePercent,
		holdDays:      holdDays,
		expiryMinutes: expiryMinutes,
		logger:        logger,
	}
}

// CreateCheckout creates a PIX charge for a pack purchase. It is idempotent
// per (buyer, pack): a live pending charge is returned unchanged, a paid one
// is a conflict.
func (s *Service) CreateCheckout(ctx context.Context, buyerID, packID int64) (*View, error) {
	pk, err := s.packs.GetByID(packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPackNotFound
		}
		return nil, apperrors.NewInternalError("failed to load pack", err)
	}
	if !pk.IsPublished() {
		return nil, apperrors.ErrPackNotPublished
	}
	if pk.CreatorID == buyerID {
		return nil, apperrors.ErrOwnPackPurchase
	}

	if existing, err := s.repo.GetPaidByBuyerAndPack(buyerID, packID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalError("failed to check prior purchases", err)
	} else if existing != nil {
		return nil, apperrors.ErrAlreadyPurchased
	}

	hasLegacy, err := s.purchases.HasPaidPurchase(buyerID, packID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check prior purchases", err)
	}
	if hasLegacy {
		return nil, apperrors.ErrAlreadyPurchased
	}

	now := time.Now().UTC()

	pending, err := s.repo.GetPendingByBuyerAndPack(buyerID, packID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalError("failed to check pending payments", err)
	}
	if pending != nil {
		if !pending.IsExpired(now) {
			// same charge, same QR code: never create a duplicate
			return toView(pending), nil
		}
		if err := s.repo.UpdateStatus(pending.ID, paymentmodel.StatusExpired); err != nil {
			return nil, apperrors.NewInternalError("failed to expire stale payment", err)
		}
		s.logger.Info("expired stale pending payment", "payment_id", pending.ID, "buyer_id", buyerID, "pack_id", packID)
	}

	buyer, err := s.users.GetByID(buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("User not found", apperrors.ErrCodeUserNotFound)
		}
		return nil, apperrors.NewInternalError("failed to load buyer profile", err)
	}

	platformFee := int64(math.Round(float64(pk.Price) * s.feePercent / 100))
	creatorEarnings := pk.Price - platformFee

	adapter, err := s.registry.Active()
	if err != nil {
		return nil, apperrors.NewInternalError("payment provider misconfigured", err)
	}

	externalID := uuid.NewString()
	charge, err := adapter.GeneratePixCharge(ctx, gateway.ChargeRequest{
		Amount:      pk.Price,
		ExternalID:  externalID,
		Description: fmt.Sprintf("Pack: %s", pk.Title),
		Customer: gateway.Customer{
			Name:     buyer.Name,
			Email:    buyer.Email,
			Document: buyer.Document,
		},
		ExpiresInMinutes: s.expiryMinutes,
	})
	if err != nil {
		// provider internals never reach the buyer
		s.logger.Error("pix charge creation failed",
			"provider", adapter.Name(),
			"buyer_id", buyerID,
			"pack_id", packID,
			"error", err)
		return nil, apperrors.NewExternalError("could not generate PIX charge, please try again", apperrors.ErrCodeChargeFailed)
	}

	availableAt := now.AddDate(0, 0, s.holdDays)
	p := &paymentmodel.Payment{
		BuyerID:              buyerID,
		CreatorID:            pk.CreatorID,
		PackID:               packID,
		Amount:               pk.Price,
		PlatformFee:          platformFee,
		CreatorEarnings:      creatorEarnings,
		Provider:             adapter.Name(),
		ExternalID:           externalID,
		GatewayTransactionID: charge.GatewayID,
		QRCode:               charge.QRCode,
		QRCodeText:           charge.QRCodeText,
		ExpiresAt:            charge.ExpiresAt,
		Status:               paymentmodel.StatusPending,
		AvailableAt:          &availableAt,
	}
	if err := s.repo.Create(p); err != nil {
		return nil, apperrors.NewInternalError("failed to persist payment", err)
	}

	s.logger.Info("checkout created",
		"payment_id", p.ID,
		"buyer_id", buyerID,
		"pack_id", packID,
		"amount", p.Amount,
		"platform_fee", platformFee,
		"creator_earnings", creatorEarnings,
		"provider", p.Provider)

	return toView(p), nil
}

// GetPaymentStatus returns a payment to its buyer. A locally pending payment
// is reconciled against the provider first; provider outages fall back to the
// stored status so the read path never hard-fails.
func (s *Service) GetPaymentStatus(ctx context.Context, paymentID, callerID int64) (*View, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.NewInternalError("failed to load payment", err)
	}
	if p.BuyerID != callerID {
		return nil, apperrors.ErrUnauthorizedAccess
	}

	if p.Status != paymentmodel.StatusPending {
		return toView(p), nil
	}

	adapter, err := s.registry.Get(p.Provider)
	if err != nil {
		s.logger.Error("payment provider no longer registered", "payment_id", p.ID, "provider", p.Provider)
		return toView(p), nil
	}

	result, err := adapter.GetPaymentStatus(ctx, p.GatewayTransactionID)
	if err != nil {
		s.logger.Warn("status poll failed, serving stored status",
			"payment_id", p.ID,
			"provider", p.Provider,
			"error", err)
		return toView(p), nil
	}

	if string(result.Status) == p.Status {
		return toView(p), nil
	}

	updated, err := s.reconciler.ReconcilePaymentStatus(ctx, p, result)
	if err != nil {
		s.logger.Error("status reconciliation failed, serving stored status",
			"payment_id", p.ID,
			"provider_status", string(result.Status),
			"error", err)
		return toView(p), nil
	}
	return toView(updated), nil
}
