package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
)

const releaseBatchLimit = 500

// ReleasablePaymentRepository is the slice of the payment store the release
// job needs: due payments, and a transactional re-read + mark so the
// balanceReleased flag guards re-entry.
type ReleasablePaymentRepository interface {
	ListDueForRelease(now time.Time, limit int) ([]*paymentmodel.Payment, error)
	GetForRelease(tx *gorm.DB, id int64) (*paymentmodel.Payment, error)
	MarkReleased(tx *gorm.DB, id int64) error
}

// ReleaseJob moves creator earnings from frozen to available once the
// anti-fraud hold elapses. Each payment is processed in its own transaction so
// one failure neither blocks the batch nor holds locks for long; failed
// payments are retried on the next run.
type ReleaseJob struct {
	db       *gorm.DB
	payments ReleasablePaymentRepository
	wallets  *Service
	ledger   *ledgerpkg.Service
	interval time.Duration
	logger   *slog.Logger
}

func NewReleaseJob(db *gorm.DB, payments ReleasablePaymentRepository, wallets *Service, ledger *ledgerpkg.Service, interval time.Duration, logger *slog.Logger) *ReleaseJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReleaseJob{
		db:       db,
		payments: payments,
		wallets:  wallets,
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the job on a fixed interval until the context is cancelled.
func (j *ReleaseJob) Start(ctx context.Context) {
	j.logger.Info("balance release job started", "interval", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			released, err := j.RunOnce(ctx)
			if err != nil {
				j.logger.Error("balance release run failed", "error", err)
			} else if released > 0 {
				j.logger.Info("balance release run finished", "released", released)
			}
		case <-ctx.Done():
			j.logger.Info("balance release job stopped")
			return
		}
	}
}

// RunOnce releases every due payment, one transaction each. It returns how
// many payments were released; per-payment failures are logged and left for
// the next run.
func (j *ReleaseJob) RunOnce(ctx context.Context) (int, error) {
	due, err := j.payments.ListDueForRelease(time.Now().UTC(), releaseBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list due payments: %w", err)
	}

	released := 0
	for _, p := range due {
		select {
		case <-ctx.Done():
			return released, ctx.Err()
		default:
		}

		if err := j.releaseOne(p.ID); err != nil {
			j.logger.Error("failed to release payment balance",
				"payment_id", p.ID,
				"creator_id", p.CreatorID,
				"creator_earnings", p.CreatorEarnings,
				"error", err)
			continue
		}
		released++
	}

	return released, nil
}

func (j *ReleaseJob) releaseOne(paymentID int64) error {
	return j.db.Transaction(func(tx *gorm.DB) error {
		// re-read under the transaction: the flag guards concurrent runs
		p, err := j.payments.GetForRelease(tx, paymentID)
		if err != nil {
			return err
		}
		if p == nil || p.BalanceReleased || p.Status != paymentmodel.StatusPaid {
			return nil
		}

		w, err := j.wallets.GetOrCreateWallet(tx, p.CreatorID)
		if err != nil {
			return err
		}

		w, err = j.wallets.ReleaseFrozen(tx, w.ID, p.CreatorEarnings)
		if err != nil {
			return err
		}

		if err := j.payments.MarkReleased(tx, p.ID); err != nil {
			return err
		}

		// amount 0: a reclassification between frozen and available, not a
		// new credit; the wallet total is untouched
		if err := j.ledger.CreateEntry(tx, ledgerpkg.EntryParams{
			WalletID:     &w.ID,
			Direction:    ledgermodel.DirectionCredit,
			Category:     ledgermodel.CategoryRelease,
			Amount:       0,
			BalanceAfter: w.TotalBalance(),
			PaymentID:    &p.ID,
			Description:  fmt.Sprintf("released %d cents from escrow for payment %d", p.CreatorEarnings, p.ID),
		}); err != nil {
			return err
		}

		j.logger.Info("creator earnings released",
			"payment_id", p.ID,
			"wallet_id", w.ID,
			"creator_id", p.CreatorID,
			"amount", p.CreatorEarnings)
		return nil
	})
}
