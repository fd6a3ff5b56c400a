package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"ledger_entries", "webhook_events", "payouts", "payments", "purchases", "wallets", "packs", "users"} {
				if _, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		creatorID := seedUser(db, "marina@mail.com", "Marina Creator", string(hash), "52998224725", "marina@mail.com", "email")
		buyerID := seedUser(db, "rafael@mail.com", "Rafael Buyer", string(hash), "15350946056", "", "")

		seedPack(db, creatorID, "Lightroom Presets Vol. 1", 2990)
		seedPack(db, creatorID, "Video LUTs Bundle", 4990)

		var walletExists int
		if err := db.QueryRow("SELECT 1 FROM wallets WHERE user_id = $1", creatorID).Scan(&walletExists); err != nil {
			if _, err := db.Exec("INSERT INTO wallets (user_id, available_balance, frozen_balance, created_at, updated_at) VALUES ($1, 0, 0, now(), now())", creatorID); err != nil {
				log.Fatalf("failed to insert creator wallet: %v", err)
			}
			fmt.Println("Seeded creator wallet")
		}

		fmt.Println("Seeding complete. Buyer:", buyerID, "Creator:", creatorID)
	},
}

func seedUser(db *sqlx.DB, email, name, passwordHash, document, pixKey, pixKeyType string) int64 {
	var id int64
	if err := db.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&id); err == nil {
		fmt.Println("user already exists:", email)
		return id
	}

	query := `INSERT INTO users (email, name, password_hash, document, pix_key, pix_key_type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), true, now(), now()) RETURNING id`
	if err := db.QueryRow(query, email, name, passwordHash, document, pixKey, pixKeyType).Scan(&id); err != nil {
		log.Fatalf("failed to insert user %s: %v", email, err)
	}
	fmt.Println("Seeded user:", email)
	return id
}

func seedPack(db *sqlx.DB, creatorID int64, title string, price int64) {
	var id int64
	if err := db.QueryRow("SELECT id FROM packs WHERE creator_id = $1 AND title = $2", creatorID, title).Scan(&id); err == nil {
		return
	}

	query := `INSERT INTO packs (creator_id, title, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'published', now(), now())`
	if _, err := db.Exec(query, creatorID, title, price); err != nil {
		log.Fatalf("failed to insert pack %q: %v", title, err)
	}
	fmt.Println("Seeded pack:", title)
}
