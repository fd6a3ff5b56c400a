package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	paymentstore "github.com/frahmantamala/packpay/internal/payment/postgres"
	payoutstore "github.com/frahmantamala/packpay/internal/payout/postgres"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run background jobs",
	Long:  `Run background jobs without the HTTP server.`,
}

var releaseWorkerCmd = &cobra.Command{
	Use:   "release",
	Short: "Run the balance release job",
	Long:  `Run the hourly job that moves creator earnings out of the anti-fraud hold once it elapses.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReleaseWorker()
	},
}

func init() {
	workerCmd.AddCommand(releaseWorkerCmd)
}

func startReleaseWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	log := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Error("failed to initialize orm", "error", err)
		os.Exit(1)
	}

	ledgerRepo := ledgerstore.NewLedgerRepository(gormDB)
	walletRepo := walletstore.NewWalletRepository(gormDB)
	paymentRepo := paymentstore.NewPaymentRepository(gormDB)
	payoutRepo := payoutstore.NewPayoutRepository(gormDB)

	ledgerService := ledgerpkg.NewService(ledgerRepo, walletRepo, log)
	walletService := walletpkg.NewService(gormDB, walletRepo, payoutRepo, ledgerService, cfg.Payment.MinPayoutAmount, log)
	releaseJob := walletpkg.NewReleaseJob(gormDB, paymentRepo, walletService, ledgerService, cfg.Payment.ReleaseInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	releaseJob.Start(ctx)
}
