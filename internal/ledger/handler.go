package ledger

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/webhookevent"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

type EventListResponse struct {
	OrderCode int64                        `json:"orderCode"`
	Events    []*webhookevent.WebhookEvent `json:"events"`
}

// ListOrderEvents returns the webhook deliveries recorded for one order, oldest first.
func (h *Handler) ListOrderEvents(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(chi.URLParam(r, "orderCode"), 10, 64)
	if err != nil || code <= 0 {
		h.WriteAppError(w, errors.ErrInvalidOrderCode)
		return
	}

	evts, err := h.Service.EventsForOrder(r.Context(), code)
	if err != nil {
		h.Logger.Error("ListOrderEvents: lookup failed", "error", err, "order_code", code)
		h.WriteAppError(w, err)
		return
	}
	if evts == nil {
		evts = []*webhookevent.WebhookEvent{}
	}

	h.WriteJSON(w, http.StatusOK, EventListResponse{OrderCode: code, Events: evts})
}
