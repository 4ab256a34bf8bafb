package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/webhookevent"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordEventIfNew appends a ledger entry. It returns false when the hash was
// already recorded by an earlier delivery.
func (s *Service) RecordEventIfNew(ctx context.Context, eventHash string, orderCode int64, payload []byte) (bool, error) {
	isNew, err := Record(ctx, s.repo, eventHash, orderCode, payload, s.now())
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to record webhook event", "error", err, "order_code", orderCode)
		return false, err
	}
	return isNew, nil
}

func (s *Service) EventsForOrder(ctx context.Context, orderCode int64) ([]*webhookevent.WebhookEvent, error) {
	if orderCode <= 0 {
		return nil, errors.ErrInvalidOrderCode
	}
	evts, err := s.repo.ListByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, fmt.Errorf("list webhook events for order %d: %w", orderCode, err)
	}
	return evts, nil
}

// Record is the insert-if-absent used both by Service and by callers that
// already hold a transaction-scoped repository.
func Record(ctx context.Context, repo RepositoryAPI, eventHash string, orderCode int64, payload []byte, at time.Time) (bool, error) {
	if eventHash == "" {
		return false, fmt.Errorf("record webhook event: empty hash")
	}

	var stored datatypes.JSON
	if len(payload) > 0 && json.Valid(payload) {
		stored = datatypes.JSON(payload)
	}

	isNew, err := repo.RecordIfNew(ctx, &webhookevent.WebhookEvent{
		EventHash:  eventHash,
		OrderCode:  orderCode,
		ReceivedAt: at,
		Payload:    stored,
	})
	if err != nil {
		return false, fmt.Errorf("record webhook event %s: %w", eventHash, err)
	}
	return isNew, nil
}
