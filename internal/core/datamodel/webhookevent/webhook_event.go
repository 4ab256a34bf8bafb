package webhookevent

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is one ledger row: proof that a distinct provider delivery was handled.
type WebhookEvent struct {
	ID         int64          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	EventHash  string         `json:"eventHash" gorm:"column:event_hash;type:varchar(64);not null;uniqueIndex:uq_webhook_events_event_hash"`
	OrderCode  int64          `json:"orderCode" gorm:"column:order_code;not null;index:idx_webhook_events_order_code"`
	ReceivedAt time.Time      `json:"receivedAt" gorm:"column:received_at;not null"`
	Payload    datatypes.JSON `json:"payload" gorm:"column:payload"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
