package payout_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
	usermodel "github.com/frahmantamala/packpay/internal/core/datamodel/user"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
	"github.com/frahmantamala/packpay/internal/gateway"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	payoutpkg "github.com/frahmantamala/packpay/internal/payout"
	payoutstore "github.com/frahmantamala/packpay/internal/payout/postgres"
	userpkg "github.com/frahmantamala/packpay/internal/user"
	userstore "github.com/frahmantamala/packpay/internal/user/postgres"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

// fakeAdapter stands in for a provider so transfer outcomes can be scripted.
type fakeAdapter struct {
	payoutResult *gateway.Payout
	payoutErr    error
	statusResult *gateway.PayoutStatusResult
	statusErr    error
	executed     []gateway.PayoutRequest
}

func (f *fakeAdapter) Name() string { return "fakepix" }

func (f *fakeAdapter) GeneratePixCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	return nil, gateway.NewInvalidRequestError(f.Name(), "not implemented")
}

func (f *fakeAdapter) GetPaymentStatus(ctx context.Context, gatewayID string) (*gateway.PaymentStatusResult, error) {
	return nil, gateway.NewInvalidRequestError(f.Name(), "not implemented")
}

func (f *fakeAdapter) ExecutePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.Payout, error) {
	f.executed = append(f.executed, req)
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return f.payoutResult, nil
}

func (f *fakeAdapter) GetPayoutStatus(ctx context.Context, gatewayID string) (*gateway.PayoutStatusResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusResult, nil
}

func (f *fakeAdapter) ValidateWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return false
}

func (f *fakeAdapter) SignatureHeader() string { return "x-fakepix-signature" }

func (f *fakeAdapter) ParseWebhookEvent(rawBody []byte) (*gateway.WebhookEvent, error) {
	return nil, gateway.NewInvalidRequestError(f.Name(), "not implemented")
}

// fakeReconciler applies the polled status directly onto the payout row.
type fakeReconciler struct {
	db *gorm.DB
}

func (r *fakeReconciler) ReconcilePayoutStatus(ctx context.Context, po *payoutmodel.Payout, result *gateway.PayoutStatusResult) (*payoutmodel.Payout, error) {
	if err := r.db.Model(&payoutmodel.Payout{}).Where("id = ?", po.ID).Update("status", string(result.Status)).Error; err != nil {
		return nil, err
	}
	fresh := &payoutmodel.Payout{}
	if err := r.db.First(fresh, po.ID).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

// drainingUserRepo plays the part of a competing payout request: the first
// profile lookup drains the wallet, landing between the caller's pre-flight
// balance check and the reservation transaction.
type drainingUserRepo struct {
	userpkg.Repository
	wallets  *walletpkg.Service
	db       *gorm.DB
	walletID int64
	amount   int64
	drained  bool
}

func (r *drainingUserRepo) GetByID(id int64) (*usermodel.User, error) {
	if !r.drained {
		r.drained = true
		if _, err := r.wallets.DebitAvailable(r.db, r.walletID, r.amount); err != nil {
			return nil, err
		}
	}
	return r.Repository.GetByID(id)
}

func openTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	Expect(err).NotTo(HaveOccurred())

	for _, ddl := range []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT,
			document TEXT,
			pix_key TEXT,
			pix_key_type TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE wallets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE,
			available_balance INTEGER NOT NULL DEFAULT 0,
			frozen_balance INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE ledger_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			wallet_id INTEGER,
			direction TEXT NOT NULL,
			category TEXT NOT NULL,
			amount INTEGER NOT NULL,
			balance_after INTEGER NOT NULL DEFAULT 0,
			payment_id INTEGER,
			payout_id INTEGER,
			description TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE payouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			creator_id INTEGER NOT NULL,
			wallet_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			provider TEXT NOT NULL,
			external_id TEXT NOT NULL UNIQUE,
			gateway_transaction_id TEXT,
			pix_key TEXT NOT NULL,
			pix_key_type TEXT NOT NULL,
			recipient_name TEXT NOT NULL,
			recipient_document TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			failure_reason TEXT,
			requested_at DATETIME,
			completed_at DATETIME,
			failed_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	} {
		Expect(db.Exec(ddl).Error).NotTo(HaveOccurred())
	}
	return db
}

var _ = Describe("Payout service", func() {
	var (
		db       *gorm.DB
		service  *payoutpkg.Service
		wallets  *walletpkg.Service
		ledger   *ledgerpkg.Service
		registry *gateway.Registry
		adapter  *fakeAdapter
		creator  *usermodel.User
		ctx      context.Context
	)

	const minPayout = int64(5000)

	seedCreator := func(pixKey string) *usermodel.User {
		u := &usermodel.User{
			Email:    "marina@mail.com",
			Name:     "Marina",
			Document: "52998224725",
			IsActive: true,
		}
		if pixKey != "" {
			keyType := "email"
			u.PixKey = &pixKey
			u.PixKeyType = &keyType
		}
		Expect(db.Create(u).Error).NotTo(HaveOccurred())
		return u
	}

	fund := func(userID, amount int64) *walletmodel.Wallet {
		w, err := wallets.GetOrCreateWallet(db, userID)
		Expect(err).NotTo(HaveOccurred())
		if amount > 0 {
			w, err = wallets.CreditAvailable(db, w.ID, amount)
			Expect(err).NotTo(HaveOccurred())
		}
		return w
	}

	BeforeEach(func() {
		ctx = context.Background()
		db = openTestDB()

		log := logger.L()
		adapter = &fakeAdapter{
			payoutResult: &gateway.Payout{GatewayID: "gw-transfer-1", Status: gateway.PayoutStatusProcessing},
		}
		registry = gateway.NewRegistry(func() string { return "fakepix" }, adapter)

		walletRepo := walletstore.NewWalletRepository(db)
		payoutRepo := payoutstore.NewPayoutRepository(db)
		ledger = ledgerpkg.NewService(ledgerstore.NewLedgerRepository(db), walletRepo, log)
		wallets = walletpkg.NewService(db, walletRepo, payoutRepo, ledger, minPayout, log)
		service = payoutpkg.NewService(db, payoutRepo, wallets, userstore.NewUserRepository(db), ledger, registry, &fakeReconciler{db: db}, log)

		creator = seedCreator("marina@mail.com")
	})

	Describe("RequestPayout", func() {
		It("reserves funds and submits the transfer", func() {
			w := fund(creator.ID, 10000)

			view, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(payoutmodel.StatusProcessing))
			Expect(view.Amount).To(Equal(int64(6000)))
			Expect(view.PixKey).To(Equal("marina@mail.com"))

			var fresh walletmodel.Wallet
			Expect(db.First(&fresh, w.ID).Error).NotTo(HaveOccurred())
			Expect(fresh.AvailableBalance).To(Equal(int64(4000)))

			var po payoutmodel.Payout
			Expect(db.First(&po, view.ID).Error).NotTo(HaveOccurred())
			Expect(po.GatewayTransactionID).To(Equal("gw-transfer-1"))
			Expect(po.Status).To(Equal(payoutmodel.StatusProcessing))

			Expect(adapter.executed).To(HaveLen(1))
			Expect(adapter.executed[0].Amount).To(Equal(int64(6000)))
			Expect(adapter.executed[0].PixKey).To(Equal("marina@mail.com"))
			Expect(adapter.executed[0].RecipientDocument).To(Equal("52998224725"))

			var debit ledgermodel.Entry
			Expect(db.Where("category = ?", ledgermodel.CategoryPayout).First(&debit).Error).NotTo(HaveOccurred())
			Expect(debit.Direction).To(Equal(ledgermodel.DirectionDebit))
			Expect(debit.Amount).To(Equal(int64(6000)))
		})

		It("rejects amounts below the minimum before touching the wallet", func() {
			fund(creator.ID, 10000)

			_, err := service.RequestPayout(ctx, creator.ID, minPayout-1)
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodeBelowMinimumPayout))
			Expect(adapter.executed).To(BeEmpty())
		})

		It("rejects an amount above the available balance", func() {
			fund(creator.ID, 5500)

			_, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodeInsufficientBalance))
			Expect(adapter.executed).To(BeEmpty())
		})

		It("refuses to over-debit when a competing request drains the balance first", func() {
			w := fund(creator.ID, 10000)

			// 6000 leaves the wallet after this request's pre-flight check
			// passes, so only the re-check inside the locked transaction
			// stands between two reservations against the same funds
			racingUsers := &drainingUserRepo{
				Repository: userstore.NewUserRepository(db),
				wallets:    wallets,
				db:         db,
				walletID:   w.ID,
				amount:     6000,
			}
			racing := payoutpkg.NewService(db, payoutstore.NewPayoutRepository(db), wallets, racingUsers, ledger, registry, &fakeReconciler{db: db}, logger.L())

			_, err := racing.RequestPayout(ctx, creator.ID, 6000)
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodeInsufficientBalance))
			Expect(adapter.executed).To(BeEmpty())

			var rows int64
			Expect(db.Model(&payoutmodel.Payout{}).Count(&rows).Error).NotTo(HaveOccurred())
			Expect(rows).To(BeZero())

			var fresh walletmodel.Wallet
			Expect(db.First(&fresh, w.ID).Error).NotTo(HaveOccurred())
			Expect(fresh.AvailableBalance).To(Equal(int64(4000)))
		})

		It("requires a configured PIX key", func() {
			keyless := &usermodel.User{Email: "rafael@mail.com", Name: "Rafael", Document: "15350946056", IsActive: true}
			Expect(db.Create(keyless).Error).NotTo(HaveOccurred())
			fund(keyless.ID, 10000)

			_, err := service.RequestPayout(ctx, keyless.ID, 6000)
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodePixKeyNotConfigured))
			Expect(adapter.executed).To(BeEmpty())
		})

		It("compensates when the provider rejects the transfer", func() {
			w := fund(creator.ID, 10000)
			adapter.payoutErr = gateway.NewError("fakepix", gateway.ErrCodeInvalidPixKey, "pix key not found at destination")

			_, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodePayoutFailed))

			// the debit was reversed
			var fresh walletmodel.Wallet
			Expect(db.First(&fresh, w.ID).Error).NotTo(HaveOccurred())
			Expect(fresh.AvailableBalance).To(Equal(int64(10000)))

			var po payoutmodel.Payout
			Expect(db.Where("creator_id = ?", creator.ID).First(&po).Error).NotTo(HaveOccurred())
			Expect(po.Status).To(Equal(payoutmodel.StatusFailed))
			Expect(*po.FailureReason).To(ContainSubstring("pix key not found"))

			// debit and adjustment net to zero
			var credits, debits int64
			Expect(db.Model(&ledgermodel.Entry{}).
				Where("wallet_id = ? AND direction = ?", w.ID, ledgermodel.DirectionCredit).
				Select("COALESCE(SUM(amount), 0)").Scan(&credits).Error).NotTo(HaveOccurred())
			Expect(db.Model(&ledgermodel.Entry{}).
				Where("wallet_id = ? AND direction = ?", w.ID, ledgermodel.DirectionDebit).
				Select("COALESCE(SUM(amount), 0)").Scan(&debits).Error).NotTo(HaveOccurred())
			Expect(credits - debits).To(Equal(int64(10000)))
		})
	})

	Describe("GetPayout", func() {
		It("serves stored state for terminal payouts without polling", func() {
			fund(creator.ID, 10000)
			view, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())

			Expect(db.Model(&payoutmodel.Payout{}).Where("id = ?", view.ID).
				Update("status", payoutmodel.StatusCompleted).Error).NotTo(HaveOccurred())
			adapter.statusErr = gateway.NewInvalidRequestError("fakepix", "should not be called")

			got, err := service.GetPayout(ctx, view.ID, creator.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(payoutmodel.StatusCompleted))
		})

		It("reconciles an in-flight payout from the polled status", func() {
			fund(creator.ID, 10000)
			view, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())

			adapter.statusResult = &gateway.PayoutStatusResult{
				GatewayID: "gw-transfer-1",
				Status:    gateway.PayoutStatusCompleted,
			}

			got, err := service.GetPayout(ctx, view.ID, creator.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(payoutmodel.StatusCompleted))
		})

		It("falls back to stored state when the poll fails", func() {
			fund(creator.ID, 10000)
			view, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())

			adapter.statusErr = gateway.NewError("fakepix", gateway.ErrCodeGatewayUnavailable, "service unavailable")

			got, err := service.GetPayout(ctx, view.ID, creator.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(payoutmodel.StatusProcessing))
		})

		It("hides other creators' payouts", func() {
			fund(creator.ID, 10000)
			view, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.GetPayout(ctx, view.ID, creator.ID+1)
			Expect(err).To(Equal(apperrors.ErrUnauthorizedAccess))
		})

		It("returns not found for a missing payout", func() {
			_, err := service.GetPayout(ctx, 999, creator.ID)
			Expect(err).To(Equal(apperrors.ErrPayoutNotFound))
		})
	})

	Describe("ListPayouts", func() {
		It("lists the creator's payouts newest first", func() {
			fund(creator.ID, 20000)
			first, err := service.RequestPayout(ctx, creator.ID, 6000)
			Expect(err).NotTo(HaveOccurred())
			adapter.payoutResult = &gateway.Payout{GatewayID: "gw-transfer-2", Status: gateway.PayoutStatusProcessing}
			second, err := service.RequestPayout(ctx, creator.ID, 7000)
			Expect(err).NotTo(HaveOccurred())

			views, err := service.ListPayouts(creator.ID, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(views).To(HaveLen(2))
			Expect(views[0].ID).To(Equal(second.ID))
			Expect(views[1].ID).To(Equal(first.ID))
		})
	})
})
