package wallet_test

import (
	"time"

	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB creates an in-memory database with the settlement tables. DDL is
// written out by hand so the sqlite schema stays free of postgres defaults.
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
		`CREATE TABLE payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			buyer_id INTEGER NOT NULL,
			creator_id INTEGER NOT NULL,
			pack_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			platform_fee INTEGER NOT NULL,
			creator_earnings INTEGER NOT NULL,
			provider TEXT NOT NULL,
			external_id TEXT NOT NULL UNIQUE,
			gateway_transaction_id TEXT,
			qr_code TEXT,
			qr_code_text TEXT,
			expires_at DATETIME,
			status TEXT NOT NULL DEFAULT 'pending',
			paid_at DATETIME,
			available_at DATETIME,
			refunded_at DATETIME,
			balance_released BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
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
