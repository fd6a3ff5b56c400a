package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	apperrors "github.com/frahmantamala/packpay/internal"
	"github.com/frahmantamala/packpay/internal/gateway"
	"github.com/frahmantamala/packpay/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	processor *Processor
	registry  *gateway.Registry
	logger    *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, processor *Processor, registry *gateway.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		processor:   processor,
		registry:    registry,
		logger:      logger,
	}
}

// Receive handles POST /webhooks/{provider}. The body must reach the
// processor as the exact bytes received; the signature covers the raw body.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	adapter, err := h.registry.Get(providerName)
	if err != nil {
		h.HandleError(w, apperrors.NewNotFoundError("unknown webhook provider", apperrors.ErrCodeUnknownProvider))
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.HandleError(w, apperrors.NewValidationError("failed to read request body", apperrors.ErrCodeInvalidWebhook))
		return
	}

	signature := r.Header.Get(adapter.SignatureHeader())

	if err := h.processor.ProcessWebhook(r.Context(), providerName, rawBody, signature); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
