package wallet_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	apperrors "github.com/frahmantamala/packpay/internal"
	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	payoutmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payout"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	payoutstore "github.com/frahmantamala/packpay/internal/payout/postgres"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

const minPayout = int64(5000)

// countingWalletRepo records which read flavor each call used so the suite can
// tell locking reads apart from plain ones.
type countingWalletRepo struct {
	walletpkg.Repository
	lockedReads int
}

func (r *countingWalletRepo) GetByIDForUpdate(tx *gorm.DB, id int64) (*walletmodel.Wallet, error) {
	r.lockedReads++
	return r.Repository.GetByIDForUpdate(tx, id)
}

func (r *countingWalletRepo) GetByUserIDForUpdate(tx *gorm.DB, userID int64) (*walletmodel.Wallet, error) {
	r.lockedReads++
	return r.Repository.GetByUserIDForUpdate(tx, userID)
}

var _ = Describe("Wallet service", func() {
	var (
		db      *gorm.DB
		service *walletpkg.Service
		ledger  *ledgerpkg.Service
	)

	BeforeEach(func() {
		db = openTestDB()
		walletRepo := walletstore.NewWalletRepository(db)
		payoutRepo := payoutstore.NewPayoutRepository(db)
		ledger = ledgerpkg.NewService(ledgerstore.NewLedgerRepository(db), walletRepo, logger.L())
		service = walletpkg.NewService(db, walletRepo, payoutRepo, ledger, minPayout, logger.L())
	})

	Describe("GetOrCreateWallet", func() {
		It("creates a zero-balance wallet on first access", func() {
			w, err := service.GetOrCreateWallet(db, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.ID).NotTo(BeZero())
			Expect(w.AvailableBalance).To(BeZero())
			Expect(w.FrozenBalance).To(BeZero())
		})

		It("returns the same wallet on subsequent calls", func() {
			first, err := service.GetOrCreateWallet(db, 42)
			Expect(err).NotTo(HaveOccurred())

			second, err := service.GetOrCreateWallet(db, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.ID).To(Equal(first.ID))

			var count int64
			Expect(db.Model(&walletmodel.Wallet{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("balance adjustments", func() {
		var w *walletmodel.Wallet

		BeforeEach(func() {
			var err error
			w, err = service.GetOrCreateWallet(db, 7)
			Expect(err).NotTo(HaveOccurred())
		})

		It("credits and debits the frozen balance", func() {
			w, err := service.CreditFrozen(db, w.ID, 2392)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.FrozenBalance).To(Equal(int64(2392)))

			w, err = service.DebitFrozen(db, w.ID, 392)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.FrozenBalance).To(Equal(int64(2000)))
			Expect(w.AvailableBalance).To(BeZero())
		})

		It("refuses to drive a balance negative", func() {
			_, err := service.DebitAvailable(db, w.ID, 1)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("would go negative"))

			// the stored row is untouched
			fresh, err := service.GetOrCreateWallet(db, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.AvailableBalance).To(BeZero())
		})

		It("keeps the total unchanged when releasing escrow", func() {
			w, err := service.CreditFrozen(db, w.ID, 2392)
			Expect(err).NotTo(HaveOccurred())

			w, err = service.ReleaseFrozen(db, w.ID, 2392)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.AvailableBalance).To(Equal(int64(2392)))
			Expect(w.FrozenBalance).To(BeZero())
			Expect(w.TotalBalance()).To(Equal(int64(2392)))
		})
	})

	Describe("ValidatePayoutAmount", func() {
		BeforeEach(func() {
			w, err := service.GetOrCreateWallet(db, 7)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreditAvailable(db, w.ID, 10000)
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts an amount within the available balance", func() {
			Expect(service.ValidatePayoutAmount(7, 10000)).To(Succeed())
		})

		It("rejects amounts below the minimum", func() {
			err := service.ValidatePayoutAmount(7, minPayout-1)
			var appErr *apperrors.AppError
			Expect(err).To(BeAssignableToTypeOf(appErr))
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodeBelowMinimumPayout))
		})

		It("rejects amounts above the available balance", func() {
			err := service.ValidatePayoutAmount(7, 10001)
			var appErr *apperrors.AppError
			Expect(err).To(BeAssignableToTypeOf(appErr))
			Expect(err.(*apperrors.AppError).Code).To(Equal(apperrors.ErrCodeInsufficientBalance))
		})
	})

	Describe("GetWalletSummary", func() {
		It("derives lifetime figures from the ledger", func() {
			w, err := service.GetOrCreateWallet(db, 9)
			Expect(err).NotTo(HaveOccurred())

			// two sales, one successful payout, one failed payout credited back
			for _, e := range []ledgerpkg.EntryParams{
				{WalletID: &w.ID, Direction: ledgermodel.DirectionCredit, Category: ledgermodel.CategorySale, Amount: 2392},
				{WalletID: &w.ID, Direction: ledgermodel.DirectionCredit, Category: ledgermodel.CategorySale, Amount: 3992},
				{WalletID: &w.ID, Direction: ledgermodel.DirectionDebit, Category: ledgermodel.CategoryPayout, Amount: 2000},
				{WalletID: &w.ID, Direction: ledgermodel.DirectionDebit, Category: ledgermodel.CategoryPayout, Amount: 1000},
				{WalletID: &w.ID, Direction: ledgermodel.DirectionCredit, Category: ledgermodel.CategoryAdjustment, Amount: 1000},
			} {
				Expect(ledger.CreateEntry(db, e)).To(Succeed())
			}
			_, err = service.CreditFrozen(db, w.ID, 3992)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreditAvailable(db, w.ID, 392)
			Expect(err).NotTo(HaveOccurred())

			Expect(db.Create(&payoutmodel.Payout{
				CreatorID: 9, WalletID: w.ID, Amount: 1500,
				Provider: "openpix", ExternalID: "po-1",
				PixKey: "k", PixKeyType: "email",
				RecipientName: "n", RecipientDocument: "52998224725",
				Status: payoutmodel.StatusProcessing,
			}).Error).NotTo(HaveOccurred())

			summary, err := service.GetWalletSummary(9)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.WalletID).To(Equal(w.ID))
			Expect(summary.AvailableBalance).To(Equal(int64(392)))
			Expect(summary.FrozenBalance).To(Equal(int64(3992)))
			Expect(summary.PendingPayouts).To(Equal(int64(1500)))
			Expect(summary.LifetimeEarnings).To(Equal(int64(6384)))
			Expect(summary.LifetimePayouts).To(Equal(int64(2000)))
		})

		It("works for a brand new user", func() {
			summary, err := service.GetWalletSummary(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.AvailableBalance).To(BeZero())
			Expect(summary.LifetimeEarnings).To(BeZero())
			Expect(summary.PendingPayouts).To(BeZero())
		})
	})

	Describe("read paths", func() {
		var counting *countingWalletRepo

		BeforeEach(func() {
			counting = &countingWalletRepo{Repository: walletstore.NewWalletRepository(db)}
			service = walletpkg.NewService(db, counting, payoutstore.NewPayoutRepository(db), ledger, minPayout, logger.L())
		})

		It("never take a row lock", func() {
			w, err := service.GetBalance(7)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreditAvailable(db, w.ID, 10000)
			Expect(err).NotTo(HaveOccurred())
			counting.lockedReads = 0

			_, err = service.GetBalance(7)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.GetWalletSummary(7)
			Expect(err).NotTo(HaveOccurred())
			Expect(service.ValidatePayoutAmount(7, minPayout)).To(Succeed())

			Expect(counting.lockedReads).To(BeZero())
		})

		It("still lock inside mutating transactions", func() {
			w, err := service.GetOrCreateWallet(db, 7)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreditFrozen(db, w.ID, 100)
			Expect(err).NotTo(HaveOccurred())

			Expect(counting.lockedReads).To(BeNumerically(">=", 2))
		})
	})
})
