package ledger_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	walletmodel "github.com/frahmantamala/packpay/internal/core/datamodel/wallet"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

func openTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	Expect(err).NotTo(HaveOccurred())

	for _, ddl := range []string{
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
	} {
		Expect(db.Exec(ddl).Error).NotTo(HaveOccurred())
	}
	return db
}

var _ = Describe("Ledger service", func() {
	var (
		db      *gorm.DB
		service *ledgerpkg.Service
		wallet  *walletmodel.Wallet
	)

	BeforeEach(func() {
		db = openTestDB()
		walletRepo := walletstore.NewWalletRepository(db)
		service = ledgerpkg.NewService(ledgerstore.NewLedgerRepository(db), walletRepo, logger.L())

		wallet = &walletmodel.Wallet{UserID: 1}
		Expect(db.Create(wallet).Error).NotTo(HaveOccurred())
	})

	entry := func(direction, category string, amount int64) ledgerpkg.EntryParams {
		return ledgerpkg.EntryParams{
			WalletID:     &wallet.ID,
			Direction:    direction,
			Category:     category,
			Amount:       amount,
			BalanceAfter: amount,
		}
	}

	Describe("CreateEntry", func() {
		It("appends a row inside the caller's transaction", func() {
			err := db.Transaction(func(tx *gorm.DB) error {
				return service.CreateEntry(tx, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 2392))
			})
			Expect(err).NotTo(HaveOccurred())

			var count int64
			Expect(db.Model(&ledgermodel.Entry{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("rolls back with the caller's transaction", func() {
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := service.CreateEntry(tx, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 100)); err != nil {
					return err
				}
				return gorm.ErrInvalidData
			})
			Expect(err).To(HaveOccurred())

			var count int64
			Expect(db.Model(&ledgermodel.Entry{}).Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("rejects unknown directions and categories", func() {
			Expect(service.CreateEntry(db, entry("SIDEWAYS", ledgermodel.CategorySale, 100))).To(HaveOccurred())
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, "BONUS", 100))).To(HaveOccurred())
		})

		It("rejects negative amounts", func() {
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, -5))).To(HaveOccurred())
		})
	})

	Describe("VerifyWalletIntegrity", func() {
		It("returns zero when ledger and balances agree", func() {
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 2392))).To(Succeed())
			Expect(db.Model(wallet).Update("frozen_balance", 2392).Error).NotTo(HaveOccurred())

			delta, err := service.VerifyWalletIntegrity(wallet.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(delta).To(BeZero())
		})

		It("reports the delta when balances drift from the ledger", func() {
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 1000))).To(Succeed())
			Expect(db.Model(wallet).Update("available_balance", 700).Error).NotTo(HaveOccurred())

			delta, err := service.VerifyWalletIntegrity(wallet.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(delta).To(Equal(int64(300)))
		})
	})

	Describe("ListWalletEntries", func() {
		BeforeEach(func() {
			for i := 0; i < 3; i++ {
				Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, int64(100+i)))).To(Succeed())
			}
		})

		It("returns entries newest first", func() {
			entries, err := service.ListWalletEntries(wallet.ID, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Amount).To(Equal(int64(102)))
		})

		It("applies a default page size when none is given", func() {
			entries, err := service.ListWalletEntries(wallet.ID, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
		})

		It("pages with limit and offset", func() {
			entries, err := service.ListWalletEntries(wallet.ID, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Amount).To(Equal(int64(100)))
		})
	})

	Describe("SumByCategory", func() {
		It("sums only the requested direction and category", func() {
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 1000))).To(Succeed())
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionCredit, ledgermodel.CategorySale, 500))).To(Succeed())
			Expect(service.CreateEntry(db, entry(ledgermodel.DirectionDebit, ledgermodel.CategoryPayout, 300))).To(Succeed())

			total, err := service.SumByCategory(wallet.ID, ledgermodel.DirectionCredit, ledgermodel.CategorySale)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1500)))
		})
	})
})
