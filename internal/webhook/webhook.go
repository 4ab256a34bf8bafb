package webhook

import (
	"context"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/ledger"
	"github.com/thaohienhomes/phochat-payments/internal/order"
)

// Stores are the repositories bound to one transaction.
type Stores struct {
	Orders order.RepositoryAPI
	Ledger ledger.RepositoryAPI
}

// TxRunner runs fn inside a single store transaction. A non-nil error from fn
// rolls everything back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

type ServiceAPI interface {
	Ingest(ctx context.Context, payload paymentgateway.VerifiedPayload, raw []byte) (*Outcome, error)
}

// Outcome describes what one verified delivery did.
type Outcome struct {
	EventHash string
	OrderCode int64
	// Duplicate means the ledger already held this delivery; nothing else ran.
	Duplicate bool
	// Found is false when no order has this code.
	Found bool
	// Applied is true when this delivery moved the order out of pending.
	Applied     bool
	LatePayment bool
	Requested   orderDatamodel.Status
	Status      orderDatamodel.Status
}
