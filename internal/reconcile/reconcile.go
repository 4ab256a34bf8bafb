package reconcile

import (
	"context"
	"errors"
	"time"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/order"
)

// DefaultOlderThan is how long an order may stay pending before the sweep acts.
const DefaultOlderThan = 15 * time.Minute

// ErrNegativeOlderThan rejects a cutoff in the future.
var ErrNegativeOlderThan = errors.New("olderThan must not be negative")

// Orders is the part of the order service the sweep drives.
type Orders interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error)
	SetStatusByOrderCode(ctx context.Context, orderCode int64, status orderDatamodel.Status, source string) (*order.TransitionResult, error)
}

// StatusLookup asks the provider what it knows about an order.
type StatusLookup interface {
	GetPaymentStatus(ctx context.Context, orderCode int64) (string, error)
}

type ServiceAPI interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (*Report, error)
}

// Result is the sweep's verdict for one order: the status it now holds, or
// the error that kept it from being reconciled.
type Result struct {
	OrderCode int64                 `json:"orderCode"`
	Status    orderDatamodel.Status `json:"status,omitempty"`
	Error     string                `json:"error,omitempty"`

	err error
}

type Report struct {
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}
