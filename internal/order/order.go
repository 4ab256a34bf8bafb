package order

import (
	"context"
	"time"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
)

// RepositoryAPI is the durable order store. Every method that changes state is
// a single atomic statement; callers never hold rows between calls.
type RepositoryAPI interface {
	// CreateIfAbsent inserts o unless its order code already exists and
	// reports whether this call inserted the row.
	CreateIfAbsent(ctx context.Context, o *orderDatamodel.Order) (bool, error)
	// GetByOrderCode returns nil, nil when no order matches.
	GetByOrderCode(ctx context.Context, orderCode int64) (*orderDatamodel.Order, error)
	// GetByID returns nil, nil when no order matches.
	GetByID(ctx context.Context, id string) (*orderDatamodel.Order, error)
	// SetStatusIfPending moves a pending order to status. applied is false when
	// the order is missing or already terminal; the returned order is the row as
	// stored after the call, or nil when missing.
	SetStatusIfPending(ctx context.Context, orderCode int64, status orderDatamodel.Status, at time.Time) (o *orderDatamodel.Order, applied bool, err error)
	// AttachCheckoutInfo fills payment link fields that are still empty.
	AttachCheckoutInfo(ctx context.Context, orderCode int64, paymentLinkID, checkoutURL *string, at time.Time) (*orderDatamodel.Order, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error)
	ListRecent(ctx context.Context, status orderDatamodel.Status, limit int) ([]*orderDatamodel.Order, error)
}

type ServiceAPI interface {
	CreateOrReusePending(ctx context.Context, req AdmissionRequest) (string, error)
	AttachCheckoutInfo(ctx context.Context, orderCode int64, paymentLinkID, checkoutURL string) (string, error)
	StatusByOrderCode(ctx context.Context, orderCode int64) (*StatusView, error)
	OrderByOrderCode(ctx context.Context, orderCode int64) (*orderDatamodel.Order, error)
	OrderByID(ctx context.Context, id string) (*orderDatamodel.Order, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error)
	ListRecent(ctx context.Context, status string, limit int) ([]*orderDatamodel.Order, error)
	SetStatusByOrderCode(ctx context.Context, orderCode int64, status orderDatamodel.Status, source string) (*TransitionResult, error)
}

type AdmissionRequest struct {
	UserID      string
	Amount      int64
	OrderCode   int64
	Currency    string
	Description string
	Provider    string
	Metadata    map[string]interface{}
}

// StatusView is what a polling client sees. Amount and OrderID are empty for
// unknown codes.
type StatusView struct {
	Status    orderDatamodel.Status `json:"status"`
	Amount    *int64                `json:"amount,omitempty"`
	OrderCode int64                 `json:"orderCode"`
	OrderID   *string               `json:"orderId,omitempty"`
}

// TransitionResult reports the order after a transition attempt. Order is nil
// when the order code is unknown; Applied is true only for the caller whose
// write moved the order out of pending.
type TransitionResult struct {
	Order     *orderDatamodel.Order
	Applied   bool
	Requested orderDatamodel.Status
}

// Found reports whether the transition targeted an existing order.
func (r *TransitionResult) Found() bool {
	return r != nil && r.Order != nil
}

// OrderID returns the id of the targeted order, or an empty string.
func (r *TransitionResult) OrderID() string {
	if !r.Found() {
		return ""
	}
	return r.Order.ID
}

// IsLatePayment is true when a success was requested for an order the sweep already expired.
func (r *TransitionResult) IsLatePayment() bool {
	return r.Found() && !r.Applied &&
		r.Requested == orderDatamodel.StatusSucceeded &&
		r.Order.Status == orderDatamodel.StatusExpired
}
