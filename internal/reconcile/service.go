package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/internal/metrics"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

type Service struct {
	orders  Orders
	lookup  StatusLookup
	metrics *metrics.PaymentMetrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithStatusLookup makes the sweep ask the provider before expiring an order.
func WithStatusLookup(lookup StatusLookup) Option {
	return func(s *Service) {
		s.lookup = lookup
	}
}

func WithMetrics(m *metrics.PaymentMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(orders Orders, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcilePending terminates every order that has been pending longer than
// olderThan. A failure on one order is reported in its result and never stops
// the batch; only the initial listing can fail the call. An olderThan of zero
// sweeps every order still pending now.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration) (*Report, error) {
	if olderThan < 0 {
		return nil, ErrNegativeOlderThan
	}
	lg := logger.FromOr(ctx, s.logger)
	cutoff := s.now().Add(-olderThan)

	pending, err := s.orders.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending orders before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	report := &Report{Results: make([]Result, 0, len(pending))}
	for _, o := range pending {
		res := s.reconcileOne(ctx, o.OrderCode)
		if res.err != nil {
			lg.Error("failed to reconcile order", "order_code", o.OrderCode, "error", res.err)
		}
		report.Results = append(report.Results, res)
	}
	report.Count = len(report.Results)

	lg.Info("reconcile sweep finished", "cutoff", cutoff, "count", report.Count)
	return report, nil
}

func (s *Service) reconcileOne(ctx context.Context, orderCode int64) Result {
	target := s.targetStatus(ctx, orderCode)

	result, err := s.orders.SetStatusByOrderCode(ctx, orderCode, target, events.SourceReconcile)
	if err != nil {
		s.metrics.IncSweepResult(metrics.SweepError)
		return Result{OrderCode: orderCode, Error: err.Error(), err: err}
	}
	if !result.Found() {
		// deleted between listing and update
		err := fmt.Errorf("order %d not found", orderCode)
		s.metrics.IncSweepResult(metrics.SweepError)
		return Result{OrderCode: orderCode, Error: err.Error(), err: err}
	}

	if result.Applied {
		s.metrics.IncSweepResult(metrics.SweepTransitioned)
	} else {
		s.metrics.IncSweepResult(metrics.SweepAlreadyFinal)
	}
	return Result{OrderCode: orderCode, Status: result.Order.Status}
}

// targetStatus is expired unless the provider reports a definite outcome.
func (s *Service) targetStatus(ctx context.Context, orderCode int64) orderDatamodel.Status {
	if s.lookup == nil {
		return orderDatamodel.StatusExpired
	}
	status, err := s.lookup.GetPaymentStatus(ctx, orderCode)
	if err != nil {
		logger.FromOr(ctx, s.logger).Warn("provider status lookup failed, expiring",
			"order_code", orderCode, "error", err)
		return orderDatamodel.StatusExpired
	}
	switch status {
	case paymentgateway.PaymentStatusPaid:
		return orderDatamodel.StatusSucceeded
	case paymentgateway.PaymentStatusCancelled:
		return orderDatamodel.StatusFailed
	}
	return orderDatamodel.StatusExpired
}

// Err combines the per-order failures of r, or returns nil.
func (r *Report) Err() error {
	if r == nil {
		return nil
	}
	var combined error
	for _, res := range r.Results {
		if res.err != nil {
			combined = multierr.Append(combined, fmt.Errorf("order %d: %w", res.OrderCode, res.err))
		} else if res.Error != "" {
			combined = multierr.Append(combined, fmt.Errorf("order %d: %w", res.OrderCode, errors.New(res.Error)))
		}
	}
	return combined
}
