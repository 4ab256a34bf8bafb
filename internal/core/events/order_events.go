package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOrderSucceeded   = "order.succeeded"
	EventTypeOrderFailed      = "order.failed"
	EventTypeOrderExpired     = "order.expired"
	EventTypeOrderLatePayment = "order.late_payment"
)

// OrderTransitionEventTypes lists the events emitted for an applied transition.
var OrderTransitionEventTypes = []string{
	EventTypeOrderSucceeded,
	EventTypeOrderFailed,
	EventTypeOrderExpired,
}

// Transition sources.
const (
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
	SourceAdmin     = "admin"
)

type OrderTransitionedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	OrderCode int64  `json:"order_code"`
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Source    string `json:"source"`
}

// NewOrderTransitionedEvent builds the event for an order that just left pending.
// The event type is derived from the terminal status.
func NewOrderTransitionedEvent(orderID string, orderCode int64, userID string, amount int64, currency, status, source string) (*OrderTransitionedEvent, error) {
	eventType := "order." + status
	if !isTransitionType(eventType) {
		return nil, fmt.Errorf("no transition event for status %q", status)
	}
	return &OrderTransitionedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"order_id":   orderID,
				"order_code": orderCode,
				"user_id":    userID,
				"amount":     amount,
				"currency":   currency,
				"status":     status,
				"source":     source,
			},
		},
		OrderID:   orderID,
		OrderCode: orderCode,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		Source:    source,
	}, nil
}

// LatePaymentEvent reports a success that arrived after the order had expired.
type LatePaymentEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	OrderCode int64  `json:"order_code"`
	Amount    int64  `json:"amount"`
	EventHash string `json:"event_hash"`
}

func NewLatePaymentEvent(orderID string, orderCode, amount int64, eventHash string) *LatePaymentEvent {
	return &LatePaymentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeOrderLatePayment,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"order_id":   orderID,
				"order_code": orderCode,
				"amount":     amount,
				"event_hash": eventHash,
			},
		},
		OrderID:   orderID,
		OrderCode: orderCode,
		Amount:    amount,
		EventHash: eventHash,
	}
}

func isTransitionType(eventType string) bool {
	for _, t := range OrderTransitionEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}
