package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/core/events"
	"github.com/frahmantamala/packpay/internal/gateway"
	ledgerpkg "github.com/frahmantamala/packpay/internal/ledger"
	ledgerstore "github.com/frahmantamala/packpay/internal/ledger/postgres"
	packstore "github.com/frahmantamala/packpay/internal/pack/postgres"
	paymentpkg "github.com/frahmantamala/packpay/internal/payment"
	paymentstore "github.com/frahmantamala/packpay/internal/payment/postgres"
	payoutpkg "github.com/frahmantamala/packpay/internal/payout"
	payoutstore "github.com/frahmantamala/packpay/internal/payout/postgres"
	"github.com/frahmantamala/packpay/internal/transport"
	"github.com/frahmantamala/packpay/internal/transport/rest"
	userstore "github.com/frahmantamala/packpay/internal/user/postgres"
	walletpkg "github.com/frahmantamala/packpay/internal/wallet"
	walletstore "github.com/frahmantamala/packpay/internal/wallet/postgres"
	webhookpkg "github.com/frahmantamala/packpay/internal/webhook"
	webhookstore "github.com/frahmantamala/packpay/internal/webhook/postgres"
	"github.com/frahmantamala/packpay/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
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

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Error("failed to initialize orm", "error", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		log.Error("failed to build gateway registry", "error", err)
		os.Exit(1)
	}

	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		log.Error("failed to parse JWT public key", "error", err)
		os.Exit(1)
	}

	bus := events.NewEventBus(log)

	// repositories
	ledgerRepo := ledgerstore.NewLedgerRepository(gormDB)
	walletRepo := walletstore.NewWalletRepository(gormDB)
	paymentRepo := paymentstore.NewPaymentRepository(gormDB)
	purchaseRepo := paymentstore.NewPurchaseRepository(gormDB)
	payoutRepo := payoutstore.NewPayoutRepository(gormDB)
	webhookRepo := webhookstore.NewWebhookRepository(gormDB)
	packRepo := packstore.NewPackRepository(gormDB)
	userRepo := userstore.NewUserRepository(gormDB)

	// services
	ledgerService := ledgerpkg.NewService(ledgerRepo, walletRepo, log)
	walletService := walletpkg.NewService(gormDB, walletRepo, payoutRepo, ledgerService, cfg.Payment.MinPayoutAmount, log)
	processor := webhookpkg.NewProcessor(gormDB, registry, webhookRepo, paymentRepo, payoutRepo, walletService, ledgerService, bus, log)
	paymentService := paymentpkg.NewService(
		paymentRepo, packRepo, userRepo, purchaseRepo, registry, processor,
		cfg.Payment.PlatformFeePercent, cfg.Payment.AntiFraudHoldDays, cfg.Payment.ChargeExpiryMinutes, log)
	payoutService := payoutpkg.NewService(gormDB, payoutRepo, walletService, userRepo, ledgerService, registry, processor, log)
	releaseJob := walletpkg.NewReleaseJob(gormDB, paymentRepo, walletService, ledgerService, cfg.Payment.ReleaseInterval, log)

	// handlers
	baseHandler := transport.NewBaseHandler(log)
	handlers := rest.Handlers{
		Payment: paymentpkg.NewHandler(baseHandler, paymentService, log),
		Wallet:  walletpkg.NewHandler(baseHandler, walletService, ledgerService, log),
		Payout:  payoutpkg.NewHandler(baseHandler, payoutService, log),
		Webhook: webhookpkg.NewHandler(baseHandler, processor, registry, log),
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, handlers, publicKey, log)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go releaseJob.Start(jobCtx)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		cancelJobs()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		cancelJobs()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

// buildRegistry turns the per-provider configuration into adapter instances.
// Every configured name must be a known adapter so typos fail at startup, not
// on the first checkout.
func buildRegistry(cfg *internal.Config, log *slog.Logger) (*gateway.Registry, error) {
	adapters := make([]gateway.Adapter, 0, len(cfg.Payment.Providers))
	for name, pc := range cfg.Payment.Providers {
		switch name {
		case "openpix":
			adapters = append(adapters, gateway.NewOpenPixAdapter(gateway.OpenPixConfig{
				APIURL:        pc.APIURL,
				APIKey:        pc.APIKey,
				WebhookSecret: pc.WebhookSecret,
			}, log))
		case "abacatepay":
			adapters = append(adapters, gateway.NewAbacatePayAdapter(gateway.AbacatePayConfig{
				APIURL:        pc.APIURL,
				APIKey:        pc.APIKey,
				WebhookSecret: pc.WebhookSecret,
			}, log))
		case "starkpay":
			adapters = append(adapters, gateway.NewStarkPayAdapter(gateway.StarkPayConfig{
				APIURL:        pc.APIURL,
				APIKey:        pc.APIKey,
				WebhookSecret: pc.WebhookSecret,
			}, log))
		default:
			return nil, fmt.Errorf("no adapter registered for configured provider %q", name)
		}
	}

	activeLookup := func() string { return cfg.Payment.ActiveProvider }
	return gateway.NewRegistry(activeLookup, adapters...), nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
