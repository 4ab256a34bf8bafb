package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/thaohienhomes/phochat-payments/internal/metrics"
	"github.com/thaohienhomes/phochat-payments/internal/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	verifier paymentgateway.Verifier
	metrics  *metrics.PaymentMetrics
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, verifier paymentgateway.Verifier, m *metrics.PaymentMetrics) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		verifier:    verifier,
		metrics:     m,
	}
}

type ackResponse struct {
	OK          bool `json:"ok,omitempty"`
	Received    bool `json:"received,omitempty"`
	Healthcheck bool `json:"healthcheck,omitempty"`
	Ignored     bool `json:"ignored,omitempty"`
	Duplicate   bool `json:"duplicate,omitempty"`
}

// Receive ingests a provider delivery. It answers 200 for everything except a
// storage failure, which returns 500 so the provider retries.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil || IsHealthcheck(raw) {
		h.metrics.IncWebhook(metrics.WebhookHealthcheck)
		h.WriteJSON(w, http.StatusOK, ackResponse{OK: true, Healthcheck: true})
		return
	}

	payload, err := h.verifier.Verify(raw)
	if err != nil {
		h.Logger.Warn("webhook verification failed", "error", err)
		h.metrics.IncWebhook(metrics.WebhookUnverified)
		h.WriteJSON(w, http.StatusOK, ackResponse{OK: true, Ignored: true})
		return
	}
	if payload.OrderCode == 0 {
		h.Logger.Warn("verified webhook without order code")
		h.metrics.IncWebhook(metrics.WebhookIgnored)
		h.WriteJSON(w, http.StatusOK, ackResponse{OK: true, Ignored: true})
		return
	}

	outcome, err := h.Service.Ingest(r.Context(), *payload, raw)
	if err != nil {
		h.metrics.IncWebhook(metrics.WebhookError)
		h.WriteError(w, http.StatusInternalServerError, "failed to process webhook")
		return
	}

	switch {
	case outcome.Duplicate:
		h.metrics.IncWebhook(metrics.WebhookDuplicate)
		h.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Duplicate: true})
		return
	case !outcome.Found:
		h.metrics.IncWebhook(metrics.WebhookUnknown)
	case outcome.Applied:
		h.metrics.IncWebhook(metrics.WebhookApplied)
	default:
		h.metrics.IncWebhook(metrics.WebhookNoop)
	}
	h.WriteJSON(w, http.StatusOK, ackResponse{Received: true})
}

// IsHealthcheck reports whether body is a provider connectivity check rather
// than a delivery: empty, not a JSON object, or missing a signature.
func IsHealthcheck(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return true
	}
	_, signed := fields["signature"]
	return !signed
}
