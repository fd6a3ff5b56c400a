package wallet_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	paymentmodel "github.com/frahmantamala/packpay/internal/core/datamodel/payment"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	paymentstore "github.com/frahmantamala/packpay/internal/payment/postgres"
	payoutstore "github.com/frahmantamala/packpay/internal/payout/postgres"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

var _ = Describe("Balance release job", func() {
	var (
		db      *gorm.DB
		wallets *walletpkg.Service
		job     *walletpkg.ReleaseJob
		wallet  *walletmodel.Wallet
	)

	const (
		creatorID = int64(9)
		earnings  = int64(2392)
	)

	newPayment := func(availableAt time.Time, status string, released bool) *paymentmodel.Payment {
		paidAt := availableAt.AddDate(0, 0, -14)
		p := &paymentmodel.Payment{
			BuyerID:         3,
			CreatorID:       creatorID,
			PackID:          1,
			Amount:          2990,
			PlatformFee:     598,
			CreatorEarnings: earnings,
			Provider:        "openpix",
			ExternalID:      "ext-" + availableAt.Format("20060102150405.000000000"),
			Status:          status,
			PaidAt:          &paidAt,
			AvailableAt:     &availableAt,
			BalanceReleased: released,
		}
		Expect(db.Create(p).Error).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		db = openTestDB()
		walletRepo := walletstore.NewWalletRepository(db)
		paymentRepo := paymentstore.NewPaymentRepository(db)
		ledger := ledgerpkg.NewService(ledgerstore.NewLedgerRepository(db), walletRepo, logger.L())
		wallets = walletpkg.NewService(db, walletRepo, payoutstore.NewPayoutRepository(db), ledger, 5000, logger.L())
		job = walletpkg.NewReleaseJob(db, paymentRepo, wallets, ledger, time.Hour, logger.L())

		var err error
		wallet, err = wallets.GetOrCreateWallet(db, creatorID)
		Expect(err).NotTo(HaveOccurred())
		_, err = wallets.CreditFrozen(db, wallet.ID, earnings)
		Expect(err).NotTo(HaveOccurred())
	})

	It("moves due earnings from frozen to available", func() {
		p := newPayment(time.Now().UTC().Add(-time.Hour), paymentmodel.StatusPaid, false)

		released, err := job.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(released).To(Equal(1))

		var w walletmodel.Wallet
		Expect(db.First(&w, wallet.ID).Error).NotTo(HaveOccurred())
		Expect(w.AvailableBalance).To(Equal(earnings))
		Expect(w.FrozenBalance).To(BeZero())

		var fresh paymentmodel.Payment
		Expect(db.First(&fresh, p.ID).Error).NotTo(HaveOccurred())
		Expect(fresh.BalanceReleased).To(BeTrue())

		// a reclassification writes a zero-amount marker row
		var entry ledgermodel.Entry
		Expect(db.Where("category = ?", ledgermodel.CategoryRelease).First(&entry).Error).NotTo(HaveOccurred())
		Expect(entry.Amount).To(BeZero())
		Expect(entry.Direction).To(Equal(ledgermodel.DirectionCredit))
		Expect(*entry.PaymentID).To(Equal(p.ID))
	})

	It("is a no-op on a second run", func() {
		newPayment(time.Now().UTC().Add(-time.Hour), paymentmodel.StatusPaid, false)

		released, err := job.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(released).To(Equal(1))

		released, err = job.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(released).To(BeZero())

		var w walletmodel.Wallet
		Expect(db.First(&w, wallet.ID).Error).NotTo(HaveOccurred())
		Expect(w.AvailableBalance).To(Equal(earnings))

		var count int64
		Expect(db.Model(&ledgermodel.Entry{}).Where("category = ?", ledgermodel.CategoryRelease).Count(&count).Error).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("leaves future and non-paid payments alone", func() {
		newPayment(time.Now().UTC().Add(24*time.Hour), paymentmodel.StatusPaid, false)
		newPayment(time.Now().UTC().Add(-time.Hour), paymentmodel.StatusRefunded, false)

		released, err := job.RunOnce(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(released).To(BeZero())

		var w walletmodel.Wallet
		Expect(db.First(&w, wallet.ID).Error).NotTo(HaveOccurred())
		Expect(w.FrozenBalance).To(Equal(earnings))
	})
})
