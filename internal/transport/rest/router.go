package rest

import (
	"crypto/rsa"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/frahmantamala/packpay/internal/payment"
	"github.com/frahmantamala/packpay/internal/payout"
	"github.com/frahmantamala/packpay/internal/transport/middleware"
	"github.com/frahmantamala/packpay/internal/transport/swagger"
	"github.com/frahmantamala/packpay/internal/wallet"
	"github.com/frahmantamala/packpay/internal/webhook"
)

type Handlers struct {
	Payment *payment.Handler
	Wallet  *wallet.Handler
	Payout  *payout.Handler
	Webhook *webhook.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, handlers Handlers, jwtPublicKey *rsa.PublicKey, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// OpenAPI spec at root, swagger UI points at it
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// webhooks authenticate by signature, not by bearer token; the raw
		// body must reach the handler untouched
		r.Post("/webhooks/{provider}", handlers.Webhook.Receive)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Auth(jwtPublicKey, logger))

			pr.Post("/checkout", handlers.Payment.Checkout)
			pr.Get("/payments/{id}", handlers.Payment.GetPayment)

			pr.Get("/wallet", handlers.Wallet.GetWallet)
			pr.Get("/wallet/transactions", handlers.Wallet.GetTransactions)

			pr.Route("/payouts", func(por chi.Router) {
				por.Post("/", handlers.Payout.RequestPayout)
				por.Get("/", handlers.Payout.ListPayouts)
				por.Get("/{id}", handlers.Payout.GetPayout)
			})
		})
	})
}
