package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thaohienhomes/phochat-payments/internal/core/events"
)

// Webhook outcomes.
const (
	WebhookHealthcheck = "healthcheck"
	WebhookUnverified  = "unverified"
	WebhookIgnored     = "ignored"
	WebhookDuplicate   = "duplicate"
	WebhookApplied     = "applied"
	WebhookNoop        = "noop"
	WebhookUnknown     = "unknown_order"
	WebhookError       = "error"
)

// Sweep outcomes.
const (
	SweepTransitioned = "transitioned"
	SweepAlreadyFinal = "already_final"
	SweepError        = "error"
)

// PaymentMetrics counts webhook deliveries, order transitions and sweep results.
type PaymentMetrics struct {
	webhooks     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	sweepResults *prometheus.CounterVec
	latePayments prometheus.Counter
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Webhook deliveries by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Applied order transitions by target status and source.",
	}, []string{"status", "source"})
	sweepResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_results_total",
		Help:      "Per-order reconciliation results by outcome.",
	}, []string{"outcome"})
	latePayments := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "late_payments_total",
		Help:      "Successful payments reported for orders that had already expired.",
	})
	reg.MustRegister(webhooks, transitions, sweepResults, latePayments)
	return &PaymentMetrics{
		webhooks:     webhooks,
		transitions:  transitions,
		sweepResults: sweepResults,
		latePayments: latePayments,
	}
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncTransition(status, source string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

func (m *PaymentMetrics) IncSweepResult(outcome string) {
	if m == nil || m.sweepResults == nil {
		return
	}
	m.sweepResults.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncLatePayment() {
	if m == nil || m.latePayments == nil {
		return
	}
	m.latePayments.Inc()
}

// Subscribe counts transitions and late payments as they are published on bus.
func (m *PaymentMetrics) Subscribe(bus *events.EventBus) {
	bus.SubscribeMany(m.handleEvent, events.OrderTransitionEventTypes...)
	bus.Subscribe(events.EventTypeOrderLatePayment, m.handleEvent)
}

func (m *PaymentMetrics) handleEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.OrderTransitionedEvent:
		m.IncTransition(e.Status, e.Source)
	case *events.LatePaymentEvent:
		m.IncLatePayment()
	}
	return nil
}
