package order_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
)

// mockOrderRepository mimics the store's conditional semantics in memory.
type mockOrderRepository struct {
	mu          sync.Mutex
	orders      map[int64]*orderDatamodel.Order
	getError    error
	createError error
	updateError error
	// raceWinner is inserted right before CreateIfAbsent runs, simulating a concurrent admission
	raceWinner *orderDatamodel.Order
	seq        int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[int64]*orderDatamodel.Order)}
}

func (m *mockOrderRepository) put(o *orderDatamodel.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderCode] = o
}

func (m *mockOrderRepository) CreateIfAbsent(_ context.Context, o *orderDatamodel.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return false, m.createError
	}
	if m.raceWinner != nil {
		m.orders[m.raceWinner.OrderCode] = m.raceWinner
		m.raceWinner = nil
	}
	if _, exists := m.orders[o.OrderCode]; exists {
		return false, nil
	}
	m.seq++
	if o.ID == "" {
		o.ID = fmt.Sprintf("order-%d", m.seq)
	}
	copied := *o
	m.orders[o.OrderCode] = &copied
	return true, nil
}

func (m *mockOrderRepository) GetByOrderCode(_ context.Context, orderCode int64) (*orderDatamodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	o, ok := m.orders[orderCode]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) GetByID(_ context.Context, id string) (*orderDatamodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	for _, o := range m.orders {
		if o.ID == id {
			copied := *o
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepository) SetStatusIfPending(_ context.Context, orderCode int64, status orderDatamodel.Status, at time.Time) (*orderDatamodel.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return nil, false, m.updateError
	}
	o, ok := m.orders[orderCode]
	if !ok {
		return nil, false, nil
	}
	applied := false
	if o.Status == orderDatamodel.StatusPending {
		o.Status = status
		o.UpdatedAt = at
		applied = true
	}
	copied := *o
	return &copied, applied, nil
}

func (m *mockOrderRepository) AttachCheckoutInfo(_ context.Context, orderCode int64, paymentLinkID, checkoutURL *string, at time.Time) (*orderDatamodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return nil, m.updateError
	}
	o, ok := m.orders[orderCode]
	if !ok {
		return nil, nil
	}
	if o.PaymentLinkID == nil && paymentLinkID != nil {
		o.PaymentLinkID = paymentLinkID
	}
	if o.CheckoutURL == nil && checkoutURL != nil {
		o.CheckoutURL = checkoutURL
	}
	o.UpdatedAt = at
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) ListPendingCreatedBefore(_ context.Context, cutoff time.Time) ([]*orderDatamodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*orderDatamodel.Order
	for _, o := range m.orders {
		if o.Status == orderDatamodel.StatusPending && o.CreatedAt.Before(cutoff) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListRecent(_ context.Context, status orderDatamodel.Status, limit int) ([]*orderDatamodel.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	var out []*orderDatamodel.Order
	for _, o := range m.orders {
		if status != "" && o.Status != status {
			continue
		}
		copied := *o
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
