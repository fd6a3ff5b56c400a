// Package webhook turns provider notifications into settlement state changes.
// Signature verification happens before any parsing, the (provider, event_id)
// unique key makes replay a no-op, and the event row plus its side effects
// commit in one transaction so a failed application is retried by the
// provider rather than swallowed.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/core/events"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
	webhookmodel "github.com/frahmantamala/packpay/internal/core/datamodel/webhook"
	"github.com/frahmantamala/packpay/internal/gateway"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
)

// errDuplicateEvent aborts the transaction when a concurrent delivery of the
// same event won the insert race. The caller treats it as success.
var errDuplicateEvent = errors.New("webhook event already recorded")

type Repository interface {
	Exists(provider, eventID string) (bool, error)
	Create(tx *gorm.DB, ev *webhookmodel.Event) error
}

type PaymentStore interface {
	GetByGatewayIDForUpdate(tx *gorm.DB, provider, gatewayID string) (*paymentmodel.Payment, error)
	MarkPaid(tx *gorm.DB, id int64, paidAt time.Time) error
	UpdateStatusTx(tx *gorm.DB, id int64, status string) error
	MarkRefunded(tx *gorm.DB, id int64, refundedAt time.Time) error
}

type PayoutStore interface {
	GetByGatewayIDForUpdate(tx *gorm.DB, provider, gatewayID string) (*payoutmodel.Payout, error)
	GetByExternalIDForUpdate(tx *gorm.DB, provider, externalID string) (*payoutmodel.Payout, error)
	SetGatewayID(tx *gorm.DB, id int64, gatewayID string) error
	MarkCompleted(tx *gorm.DB, id int64, completedAt time.Time) error
	MarkFailed(tx *gorm.DB, id int64, reason string, failedAt time.Time) error
	UpdateStatusTx(tx *gorm.DB, id int64, status string) error
}

type Processor struct {
	db       *gorm.DB
	registry *gateway.Registry
	repo     Repository
	payments PaymentStore
	payouts  PayoutStore
	wallets  *walletpkg.Service
	ledger   *ledgerpkg.Service
	bus      *events.EventBus
	logger   *slog.Logger
}

func NewProcessor(
	db *gorm.DB,
	registry *gateway.Registry,
	repo Repository,
	payments PaymentStore,
	payouts PayoutStore,
	wallets *walletpkg.Service,
	ledger *ledgerpkg.Service,
	bus *events.EventBus,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		db:       db,
		registry: registry,
		repo:     repo,
		payments: payments,
		payouts:  payouts,
		wallets:  wallets,
		ledger:   ledger,
		bus:      bus,
		logger:   logger,
	}
}

// ProcessWebhook verifies, parses and applies one provider notification.
func (p *Processor) ProcessWebhook(ctx context.Context, providerName string, rawBody []byte, signatureHeader string) error {
	adapter, err := p.registry.Get(providerName)
	if err != nil {
		return apperrors.NewNotFoundError("unknown webhook provider", apperrors.ErrCodeUnknownProvider)
	}

	// signature first: nothing in an unauthenticated body gets parsed
	if !adapter.ValidateWebhookSignature(rawBody, signatureHeader) {
		p.logger.Warn("webhook signature rejected", "provider", providerName)
		return apperrors.NewValidationError("invalid webhook signature", apperrors.ErrCodeInvalidSignature)
	}

	ev, err := adapter.ParseWebhookEvent(rawBody)
	if err != nil {
		p.logger.Warn("unparseable webhook payload", "provider", providerName, "error", err)
		return apperrors.NewValidationError("invalid webhook payload", apperrors.ErrCodeInvalidWebhook)
	}

	exists, err := p.repo.Exists(providerName, ev.EventID)
	if err != nil {
		return apperrors.NewInternalError("failed to check webhook idempotency", err)
	}
	if exists {
		p.logger.Info("webhook replay ignored", "provider", providerName, "event_id", ev.EventID, "event_type", ev.Type)
		return nil
	}

	var published []events.Event
	now := time.Now().UTC()
	err = p.db.Transaction(func(tx *gorm.DB) error {
		row := &webhookmodel.Event{
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			Payload:     rawBody,
			Processed:   true,
			ProcessedAt: &now,
		}
		if err := p.repo.Create(tx, row); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateEvent
			}
			return fmt.Errorf("failed to record webhook event: %w", err)
		}
		return p.applyEvent(tx, providerName, ev, &published)
	})
	if errors.Is(err, errDuplicateEvent) {
		p.logger.Info("webhook lost insert race to concurrent delivery", "provider", providerName, "event_id", ev.EventID)
		return nil
	}
	if err != nil {
		p.logger.Error("webhook processing failed",
			"provider", providerName,
			"event_id", ev.EventID,
			"event_type", ev.Type,
			"error", err)
		return apperrors.NewInternalError("failed to process webhook", err)
	}

	for _, e := range published {
		p.bus.Publish(ctx, e)
	}

	p.logger.Info("webhook processed", "provider", providerName, "event_id", ev.EventID, "event_type", ev.Type)
	return nil
}

// ReconcilePaymentStatus applies a polled provider status through the same
// state machine the webhook path uses, so polling can never settle a payment
// differently than the provider's push would have.
func (p *Processor) ReconcilePaymentStatus(ctx context.Context, pay *paymentmodel.Payment, result *gateway.PaymentStatusResult) (*paymentmodel.Payment, error) {
	eventType := paymentEventForStatus(result.Status)
	if eventType == "" {
		return pay, nil
	}

	ev := &gateway.WebhookEvent{
		Type:      eventType,
		GatewayID: pay.GatewayTransactionID,
	}
	if result.PaidAt != nil {
		ev.Timestamp = *result.PaidAt
	}

	var published []events.Event
	var updated *paymentmodel.Payment
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := p.applyEvent(tx, pay.Provider, ev, &published); err != nil {
			return err
		}
		fresh, err := p.payments.GetByGatewayIDForUpdate(tx, pay.Provider, pay.GatewayTransactionID)
		if err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range published {
		p.bus.Publish(ctx, e)
	}
	return updated, nil
}

func paymentEventForStatus(status gateway.PaymentStatus) string {
	switch status {
	case gateway.PaymentStatusPaid:
		return gateway.EventPaymentPaid
	case gateway.PaymentStatusExpired:
		return gateway.EventPaymentExpired
	case gateway.PaymentStatusCancelled:
		return gateway.EventPaymentCancelled
	case gateway.PaymentStatusRefunded:
		return gateway.EventPaymentRefunded
	}
	return ""
}

func (p *Processor) applyEvent(tx *gorm.DB, provider string, ev *gateway.WebhookEvent, published *[]events.Event) error {
	switch ev.Type {
	case gateway.EventPaymentPaid, gateway.EventPaymentExpired, gateway.EventPaymentCancelled, gateway.EventPaymentRefunded:
		return p.applyPaymentEvent(tx, provider, ev, published)
	case gateway.EventPayoutCompleted, gateway.EventPayoutFailed, gateway.EventPayoutProcessing:
		return p.applyPayoutEvent(tx, provider, ev, published)
	default:
		p.logger.Warn("unhandled webhook event type", "provider", provider, "event_type", ev.Type)
		return nil
	}
}

func (p *Processor) applyPaymentEvent(tx *gorm.DB, provider string, ev *gateway.WebhookEvent, published *[]events.Event) error {
	pay, err := p.payments.GetByGatewayIDForUpdate(tx, provider, ev.GatewayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// other environment or tenant; the provider retries against
			// everyone it knows about
			p.logger.Warn("webhook references unknown payment", "provider", provider, "gateway_id", ev.GatewayID, "event_type", ev.Type)
			return nil
		}
		return fmt.Errorf("failed to load payment for gateway id %s: %w", ev.GatewayID, err)
	}

	switch ev.Type {
	case gateway.EventPaymentPaid:
		if pay.Status != paymentmodel.StatusPending {
			p.logger.Info("payment.paid skipped, payment not pending", "payment_id", pay.ID, "status", pay.Status)
			return nil
		}
		return p.settlePaid(tx, pay, ev, published)

	case gateway.EventPaymentExpired, gateway.EventPaymentCancelled:
		if pay.Status != paymentmodel.StatusPending {
			p.logger.Info("terminal transition skipped, payment not pending", "payment_id", pay.ID, "status", pay.Status, "event_type", ev.Type)
			return nil
		}
		target := paymentmodel.StatusExpired
		if ev.Type == gateway.EventPaymentCancelled {
			target = paymentmodel.StatusCancelled
		}
		return p.payments.UpdateStatusTx(tx, pay.ID, target)

	case gateway.EventPaymentRefunded:
		if pay.Status != paymentmodel.StatusPaid {
			p.logger.Info("payment.refunded skipped, payment not paid", "payment_id", pay.ID, "status", pay.Status)
			return nil
		}
		return p.settleRefund(tx, pay, published)
	}
	return nil
}

// settlePaid is the money moment: mark paid, escrow the creator's cut, write
// both sides of the sale to the ledger.
func (p *Processor) settlePaid(tx *gorm.DB, pay *paymentmodel.Payment, ev *gateway.WebhookEvent, published *[]events.Event) error {
	paidAt := ev.Timestamp
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	if err := p.payments.MarkPaid(tx, pay.ID, paidAt); err != nil {
		return fmt.Errorf("failed to mark payment %d paid: %w", pay.ID, err)
	}

	w, err := p.wallets.GetOrCreateWallet(tx, pay.CreatorID)
	if err != nil {
		return err
	}
	w, err = p.wallets.CreditFrozen(tx, w.ID, pay.CreatorEarnings)
	if err != nil {
		return err
	}

	if err := p.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
		WalletID:     &w.ID,
		Direction:    ledgermodel.DirectionCredit,
		Category:     ledgermodel.CategorySale,
		Amount:       pay.CreatorEarnings,
		BalanceAfter: w.TotalBalance(),
		PaymentID:    &pay.ID,
		Description:  fmt.Sprintf("sale of pack %d", pay.PackID),
	}); err != nil {
		return err
	}

	// platform's cut has no wallet; the row exists for revenue accounting
	if err := p.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
		Direction:   ledgermodel.DirectionCredit,
		Category:    ledgermodel.CategoryPlatformFee,
		Amount:      pay.PlatformFee,
		PaymentID:   &pay.ID,
		Description: fmt.Sprintf("platform fee for payment %d", pay.ID),
	}); err != nil {
		return err
	}

	p.logger.Info("payment settled",
		"payment_id", pay.ID,
		"wallet_id", w.ID,
		"creator_id", pay.CreatorID,
		"creator_earnings", pay.CreatorEarnings,
		"platform_fee", pay.PlatformFee)

	*published = append(*published, events.NewPaymentPaidEvent(pay.ID, pay.BuyerID, pay.CreatorID, pay.PackID, pay.Amount))
	return nil
}

func (p *Processor) settleRefund(tx *gorm.DB, pay *paymentmodel.Payment, published *[]events.Event) error {
	if err := p.payments.MarkRefunded(tx, pay.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark payment %d refunded: %w", pay.ID, err)
	}

	w, err := p.wallets.GetOrCreateWallet(tx, pay.CreatorID)
	if err != nil {
		return err
	}

	// earnings sit in escrow until released, then in the available balance
	if pay.BalanceReleased {
		w, err = p.wallets.DebitAvailable(tx, w.ID, pay.CreatorEarnings)
	} else {
		w, err = p.wallets.DebitFrozen(tx, w.ID, pay.CreatorEarnings)
	}
	if err != nil {
		return err
	}

	if err := p.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
		WalletID:     &w.ID,
		Direction:    ledgermodel.DirectionDebit,
		Category:     ledgermodel.CategoryRefund,
		Amount:       pay.CreatorEarnings,
		BalanceAfter: w.TotalBalance(),
		PaymentID:    &pay.ID,
		Description:  fmt.Sprintf("refund of payment %d", pay.ID),
	}); err != nil {
		return err
	}

	p.logger.Info("payment refunded",
		"payment_id", pay.ID,
		"wallet_id", w.ID,
		"creator_earnings", pay.CreatorEarnings,
		"balance_released", pay.BalanceReleased)

	*published = append(*published, events.NewPaymentRefundedEvent(pay.ID, pay.BuyerID, pay.Amount))
	return nil
}

func (p *Processor) applyPayoutEvent(tx *gorm.DB, provider string, ev *gateway.WebhookEvent, published *[]events.Event) error {
	po, err := p.loadPayout(tx, provider, ev)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.logger.Warn("webhook references unknown payout", "provider", provider, "gateway_id", ev.GatewayID, "event_type", ev.Type)
			return nil
		}
		return fmt.Errorf("failed to load payout for gateway id %s: %w", ev.GatewayID, err)
	}

	switch ev.Type {
	case gateway.EventPayoutProcessing:
		if po.Status != payoutmodel.StatusPending {
			return nil
		}
		return p.payouts.UpdateStatusTx(tx, po.ID, payoutmodel.StatusProcessing)

	case gateway.EventPayoutCompleted:
		if po.Status != payoutmodel.StatusPending && po.Status != payoutmodel.StatusProcessing {
			p.logger.Info("payout.completed skipped", "payout_id", po.ID, "status", po.Status)
			return nil
		}
		completedAt := ev.Timestamp
		if completedAt.IsZero() {
			completedAt = time.Now().UTC()
		}
		if err := p.payouts.MarkCompleted(tx, po.ID, completedAt); err != nil {
			return fmt.Errorf("failed to mark payout %d completed: %w", po.ID, err)
		}
		p.logger.Info("payout completed", "payout_id", po.ID, "amount", po.Amount)
		*published = append(*published, events.NewPayoutCompletedEvent(po.ID, po.CreatorID, po.Amount))
		return nil

	case gateway.EventPayoutFailed:
		if po.IsTerminal() {
			p.logger.Info("payout.failed skipped, payout terminal", "payout_id", po.ID, "status", po.Status)
			return nil
		}
		reason := "provider reported failure"
		if r, ok := ev.Data["failure_reason"].(string); ok && r != "" {
			reason = r
		}
		if err := p.payouts.MarkFailed(tx, po.ID, reason, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to mark payout %d failed: %w", po.ID, err)
		}

		w, err := p.wallets.CreditAvailable(tx, po.WalletID, po.Amount)
		if err != nil {
			return err
		}
		if err := p.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
			WalletID:     &w.ID,
			Direction:    ledgermodel.DirectionCredit,
			Category:     ledgermodel.CategoryAdjustment,
			Amount:       po.Amount,
			BalanceAfter: w.TotalBalance(),
			PayoutID:     &po.ID,
			Description:  fmt.Sprintf("credit back for failed payout %d", po.ID),
		}); err != nil {
			return err
		}

		p.logger.Info("payout failed, balance restored",
			"payout_id", po.ID,
			"wallet_id", w.ID,
			"amount", po.Amount,
			"reason", reason)
		*published = append(*published, events.NewPayoutFailedEvent(po.ID, po.CreatorID, po.Amount, reason))
		return nil
	}
	return nil
}

// loadPayout matches the notification to a payout row, normally by gateway
// id. A payout whose gateway id was never recorded (the process died between
// the provider call and the update) is recovered through the correlation id
// the provider echoes back, and the missing gateway id is filled in.
func (p *Processor) loadPayout(tx *gorm.DB, provider string, ev *gateway.WebhookEvent) (*payoutmodel.Payout, error) {
	po, err := p.payouts.GetByGatewayIDForUpdate(tx, provider, ev.GatewayID)
	if err == nil {
		return po, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) || ev.ExternalID == "" {
		return nil, err
	}

	po, err = p.payouts.GetByExternalIDForUpdate(tx, provider, ev.ExternalID)
	if err != nil {
		return nil, err
	}
	if po.GatewayTransactionID != "" && po.GatewayTransactionID != ev.GatewayID {
		// same correlation id, different transfer: not ours
		return nil, gorm.ErrRecordNotFound
	}
	if po.GatewayTransactionID == "" {
		if err := p.payouts.SetGatewayID(tx, po.ID, ev.GatewayID); err != nil {
			return nil, fmt.Errorf("failed to backfill gateway id for payout %d: %w", po.ID, err)
		}
		po.GatewayTransactionID = ev.GatewayID
		p.logger.Info("payout gateway id recovered from webhook",
			"payout_id", po.ID,
			"gateway_id", ev.GatewayID,
			"external_id", ev.ExternalID)
	}
	return po, nil
}

// ReconcilePayoutStatus is the payout counterpart of ReconcilePaymentStatus:
// a polled provider status goes through the same state machine as a pushed
// event.
func (p *Processor) ReconcilePayoutStatus(ctx context.Context, po *payoutmodel.Payout, result *gateway.PayoutStatusResult) (*payoutmodel.Payout, error) {
	eventType := payoutEventForStatus(result.Status)
	if eventType == "" {
		return po, nil
	}

	ev := &gateway.WebhookEvent{
		Type:      eventType,
		GatewayID: po.GatewayTransactionID,
	}
	if result.CompletedAt != nil {
		ev.Timestamp = *result.CompletedAt
	}
	if result.FailureReason != "" {
		ev.Data = map[string]interface{}{"failure_reason": result.FailureReason}
	}

	var published []events.Event
	var updated *payoutmodel.Payout
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := p.applyEvent(tx, po.Provider, ev, &published); err != nil {
			return err
		}
		fresh, err := p.payouts.GetByGatewayIDForUpdate(tx, po.Provider, po.GatewayTransactionID)
		if err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range published {
		p.bus.Publish(ctx, e)
	}
	return updated, nil
}

func payoutEventForStatus(status gateway.PayoutStatus) string {
	switch status {
	case gateway.PayoutStatusProcessing:
		return gateway.EventPayoutProcessing
	case gateway.PayoutStatusCompleted:
		return gateway.EventPayoutCompleted
	case gateway.PayoutStatusFailed:
		return gateway.EventPayoutFailed
	}
	return ""
}
