package reconcile

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service          ServiceAPI
	defaultOlderThan time.Duration
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, defaultOlderThan time.Duration) *Handler {
	if defaultOlderThan <= 0 {
		defaultOlderThan = DefaultOlderThan
	}
	return &Handler{
		BaseHandler:      baseHandler,
		Service:          service,
		defaultOlderThan: defaultOlderThan,
	}
}

type ReconcileRequest struct {
	OlderThanMs *int64 `json:"olderThanMs"`
}

type CronResponse struct {
	OK bool `json:"ok"`
	*Report
}

// Reconcile runs a sweep with an optional olderThanMs override. A missing or
// unreadable body uses the default cutoff.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	olderThan := h.defaultOlderThan

	var req ReconcileRequest
	if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err == nil && req.OlderThanMs != nil {
			if *req.OlderThanMs < 0 {
				h.WriteAppError(w, errors.NewValidationFieldError("olderThanMs", "olderThanMs must not be negative", errors.ErrCodeValidationFailed))
				return
			}
			olderThan = time.Duration(*req.OlderThanMs) * time.Millisecond
		}
	}

	report, err := h.Service.ReconcilePending(r.Context(), olderThan)
	if err != nil {
		h.Logger.Error("Reconcile: sweep failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "reconcile failed")
		return
	}

	h.WriteJSON(w, http.StatusOK, report)
}

// ReconcileCron is the scheduler entry point; it always uses the default cutoff.
func (h *Handler) ReconcileCron(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.ReconcilePending(r.Context(), h.defaultOlderThan)
	if err != nil {
		h.Logger.Error("ReconcileCron: sweep failed", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "reconcile cron failed")
		return
	}

	h.WriteJSON(w, http.StatusOK, CronResponse{OK: true, Report: report})
}

// CronProbe answers GET on the cron path for uptime checks.
func (h *Handler) CronProbe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK (reconcile-cron expects POST)"))
}
