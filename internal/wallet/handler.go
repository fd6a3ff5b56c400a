package wallet

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/frahmantamala/packpay/internal"
	ledgermodel "github.com/frahmantamala/packpay/internal/core/datamodel/ledger"
	"github.com/frahmantamala/packpay/internal/transport"
)

// LedgerHistory is the slice of the ledger service the handler needs for the
// transaction history endpoint.
type LedgerHistory interface {
	ListWalletEntries(walletID int64, limit, offset int) ([]*ledgermodel.Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	service *Service
	ledger  LedgerHistory
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, ledger LedgerHistory, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		ledger:      ledger,
		logger:      logger,
	}
}

// GetWallet handles GET /wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, apperrors.ErrInvalidToken)
		return
	}

	summary, err := h.service.GetWalletSummary(userID)
	if err != nil {
		h.logger.Error("failed to load wallet summary", "user_id", userID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

type TransactionView struct {
	ID          int64     `json:"id"`
	Direction   string    `json:"direction"`
	Category    string    `json:"category"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description,omitempty"`
	PaymentID   *int64    `json:"payment_id,omitempty"`
	PayoutID    *int64    `json:"payout_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GetTransactions handles GET /wallet/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, apperrors.ErrInvalidToken)
		return
	}

	wlt, err := h.service.GetBalance(userID)
	if err != nil {
		h.logger.Error("failed to load wallet", "user_id", userID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.ledger.ListWalletEntries(wlt.ID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list wallet transactions", "wallet_id", wlt.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	views := make([]TransactionView, 0, len(entries))
	for _, e := range entries {
		views = append(views, TransactionView{
			ID:          e.ID,
			Direction:   e.Direction,
			Category:    e.Category,
			Amount:      e.Amount,
			Description: e.Description,
			PaymentID:   e.PaymentID,
			PayoutID:    e.PayoutID,
			CreatedAt:   e.CreatedAt,
		})
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": views,
	})
}
