package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/pkg/logger"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Service struct {
	repo     RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateOrReusePending(ctx context.Context, req AdmissionRequest) (string, error) {
	if req.Amount <= 0 {
		return "", errors.ErrInvalidAmount
	}
	if req.OrderCode <= 0 {
		return "", errors.ErrInvalidOrderCode
	}

	existing, err := s.repo.GetByOrderCode(ctx, req.OrderCode)
	if err != nil {
		return "", fmt.Errorf("lookup order %d: %w", req.OrderCode, err)
	}
	if existing != nil {
		s.log(ctx).Info("reusing existing order", "order_code", req.OrderCode, "order_id", existing.ID)
		return existing.ID, nil
	}

	o, err := s.newPendingOrder(req)
	if err != nil {
		return "", err
	}

	created, err := s.repo.CreateIfAbsent(ctx, o)
	if err != nil {
		s.log(ctx).Error("failed to create order", "error", err, "order_code", req.OrderCode)
		return "", fmt.Errorf("create order %d: %w", req.OrderCode, err)
	}
	if created {
		s.log(ctx).Info("order created",
			"order_id", o.ID,
			"order_code", o.OrderCode,
			"user_id", o.UserID,
			"amount", o.Amount)
		return o.ID, nil
	}

	// lost the insert race; the winner's row is the order
	winner, err := s.repo.GetByOrderCode(ctx, req.OrderCode)
	if err != nil {
		return "", fmt.Errorf("re-read order %d after conflict: %w", req.OrderCode, err)
	}
	if winner == nil {
		return "", fmt.Errorf("order %d vanished after insert conflict", req.OrderCode)
	}
	return winner.ID, nil
}

func (s *Service) newPendingOrder(req AdmissionRequest) (*orderDatamodel.Order, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = errors.GuestUserID
	}
	currency := req.Currency
	if currency == "" {
		currency = orderDatamodel.DefaultCurrency
	}
	provider := req.Provider
	if provider == "" {
		provider = orderDatamodel.DefaultProvider
	}

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, errors.NewValidationError("metadata must be a JSON object", errors.ErrCodeValidationFailed).WithCause(err)
		}
		metadata = datatypes.JSON(raw)
	}

	now := s.now()
	return &orderDatamodel.Order{
		OrderCode:   req.OrderCode,
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Provider:    provider,
		Metadata:    metadata,
		Status:      orderDatamodel.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AttachCheckoutInfo stores the provider link. Fields that are already set are kept.
func (s *Service) AttachCheckoutInfo(ctx context.Context, orderCode int64, paymentLinkID, checkoutURL string) (string, error) {
	o, err := s.repo.AttachCheckoutInfo(ctx, orderCode, nonEmpty(paymentLinkID), nonEmpty(checkoutURL), s.now())
	if err != nil {
		return "", fmt.Errorf("attach checkout info to order %d: %w", orderCode, err)
	}
	if o == nil {
		return "", errors.ErrOrderNotFound
	}
	return o.ID, nil
}

func (s *Service) StatusByOrderCode(ctx context.Context, orderCode int64) (*StatusView, error) {
	o, err := s.repo.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, fmt.Errorf("lookup order %d: %w", orderCode, err)
	}
	if o == nil {
		return &StatusView{Status: orderDatamodel.StatusNotFound, OrderCode: orderCode}, nil
	}
	amount := o.Amount
	id := o.ID
	return &StatusView{
		Status:    o.Status,
		Amount:    &amount,
		OrderCode: o.OrderCode,
		OrderID:   &id,
	}, nil
}

func (s *Service) OrderByOrderCode(ctx context.Context, orderCode int64) (*orderDatamodel.Order, error) {
	return s.repo.GetByOrderCode(ctx, orderCode)
}

func (s *Service) OrderByID(ctx context.Context, id string) (*orderDatamodel.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error) {
	return s.repo.ListPendingCreatedBefore(ctx, cutoff)
}

// ListRecent returns newest orders first, optionally filtered by status.
func (s *Service) ListRecent(ctx context.Context, status string, limit int) ([]*orderDatamodel.Order, error) {
	var filter orderDatamodel.Status
	if status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = parsed
	}
	return s.repo.ListRecent(ctx, filter, ClampLimit(limit))
}

// SetStatusByOrderCode applies a lifecycle transition and announces it when
// this call was the one that moved the order out of pending.
func (s *Service) SetStatusByOrderCode(ctx context.Context, orderCode int64, status orderDatamodel.Status, source string) (*TransitionResult, error) {
	result, err := ApplyTransition(ctx, s.repo, orderCode, status, s.now())
	if err != nil {
		return nil, err
	}

	switch {
	case !result.Found():
		s.log(ctx).Warn("status update for unknown order", "order_code", orderCode, "status", status)
	case result.Applied:
		s.log(ctx).Info("order transitioned",
			"order_code", orderCode,
			"order_id", result.Order.ID,
			"status", result.Order.Status,
			"source", source)
		PublishTransition(ctx, s.eventBus, result.Order, source, s.log(ctx))
	default:
		s.log(ctx).Debug("order already terminal",
			"order_code", orderCode,
			"current", result.Order.Status,
			"requested", status)
	}

	return result, nil
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromOr(ctx, s.logger)
}

// PublishTransition emits the order.<status> event for an applied transition.
func PublishTransition(ctx context.Context, bus *events.EventBus, o *orderDatamodel.Order, source string, lg *slog.Logger) {
	if bus == nil || o == nil {
		return
	}
	event, err := events.NewOrderTransitionedEvent(o.ID, o.OrderCode, o.UserID, o.Amount, o.Currency, string(o.Status), source)
	if err != nil {
		lg.Error("failed to build transition event", "error", err, "order_code", o.OrderCode)
		return
	}
	if err := bus.Publish(ctx, event); err != nil {
		lg.Error("failed to publish transition event", "error", err, "order_code", o.OrderCode)
	}
}

// ClampLimit keeps list sizes within [1, MaxListLimit], defaulting to DefaultListLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
