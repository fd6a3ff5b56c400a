package payout

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	service *Service
	logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		service:     service,
		logger:      logger,
	}
}

// RequestPayout handles POST /payouts
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, apperrors.ErrInvalidToken)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.HandleError(w, apperrors.NewValidationError("invalid request body", apperrors.ErrCodeValidationFailed))
		return
	}
	if err := req.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}

	view, err := h.service.RequestPayout(r.Context(), userID, req.Amount)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, view)
}

// GetPayout handles GET /payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, apperrors.ErrInvalidToken)
		return
	}

	payoutID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || payoutID <= 0 {
		h.HandleError(w, apperrors.NewValidationError("invalid payout id", apperrors.ErrCodeValidationFailed))
		return
	}

	view, svcErr := h.service.GetPayout(r.Context(), payoutID, userID)
	if svcErr != nil {
		h.HandleServiceError(w, svcErr)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// ListPayouts handles GET /payouts
func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	userID := apperrors.UserIDFromContext(r.Context())
	if userID == 0 {
		h.HandleError(w, apperrors.ErrInvalidToken)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	views, err := h.service.ListPayouts(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"payouts": views,
	})
}
