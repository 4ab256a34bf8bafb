package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/internal/ledger"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

type Service struct {
	tx       TxRunner
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(tx TxRunner, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		tx:       tx,
		eventBus: eventBus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest records the delivery in the ledger and applies the derived transition
// in one transaction. Events are published only after commit.
func (s *Service) Ingest(ctx context.Context, payload paymentgateway.VerifiedPayload, raw []byte) (*Outcome, error) {
	lg := logger.FromOr(ctx, s.logger).With("order_code", payload.OrderCode)
	now := s.now()

	out := &Outcome{
		EventHash: ledger.EventHash(payload),
		OrderCode: payload.OrderCode,
		Requested: order.StatusFromPayload(payload),
	}

	var result *order.TransitionResult
	err := s.tx.InTx(ctx, func(ctx context.Context, stores Stores) error {
		isNew, err := ledger.Record(ctx, stores.Ledger, out.EventHash, payload.OrderCode, raw, now)
		if err != nil {
			return err
		}
		if !isNew {
			out.Duplicate = true
			return nil
		}

		result, err = order.ApplyTransition(ctx, stores.Orders, payload.OrderCode, out.Requested, now)
		return err
	})
	if err != nil {
		lg.Error("webhook ingestion failed, rolled back", "error", err, "event_hash", out.EventHash)
		return nil, err
	}

	if out.Duplicate {
		lg.Info("duplicate webhook delivery", "event_hash", out.EventHash)
		return out, nil
	}

	out.Found = result.Found()
	out.Applied = result.Applied
	out.LatePayment = result.IsLatePayment()
	if out.Found {
		out.Status = result.Order.Status
	}

	switch {
	case !out.Found:
		lg.Warn("webhook for unknown order dropped", "event_hash", out.EventHash)
	case out.Applied:
		lg.Info("order transitioned by webhook", "order_id", result.Order.ID, "status", out.Status)
		order.PublishTransition(ctx, s.eventBus, result.Order, events.SourceWebhook, lg)
	case out.LatePayment:
		lg.Warn("payment succeeded after order expired", "order_id", result.Order.ID, "event_hash", out.EventHash)
		s.publishLatePayment(ctx, result, out.EventHash, lg)
	default:
		lg.Info("webhook for terminal order ignored", "current", out.Status, "requested", out.Requested)
	}

	return out, nil
}

func (s *Service) publishLatePayment(ctx context.Context, result *order.TransitionResult, eventHash string, lg *slog.Logger) {
	if s.eventBus == nil {
		return
	}
	o := result.Order
	if err := s.eventBus.Publish(ctx, events.NewLatePaymentEvent(o.ID, o.OrderCode, o.Amount, eventHash)); err != nil {
		lg.Error("failed to publish late payment event", "error", err)
	}
}
