package ledger

import (
	"context"

	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/webhookevent"
)

// RepositoryAPI is the append-only webhook event store.
type RepositoryAPI interface {
	// RecordIfNew inserts e unless its hash is already present. The bool is
	// false for a duplicate, which is not an error.
	RecordIfNew(ctx context.Context, e *webhookevent.WebhookEvent) (bool, error)
	ListByOrderCode(ctx context.Context, orderCode int64) ([]*webhookevent.WebhookEvent, error)
}

type ServiceAPI interface {
	RecordEventIfNew(ctx context.Context, eventHash string, orderCode int64, payload []byte) (bool, error)
	EventsForOrder(ctx context.Context, orderCode int64) ([]*webhookevent.WebhookEvent, error)
}
