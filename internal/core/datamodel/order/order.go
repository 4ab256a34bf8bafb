package order

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"

	// StatusNotFound is only reported by status lookups, never stored.
	StatusNotFound Status = "not_found"
)

const (
	DefaultCurrency = "VND"
	DefaultProvider = "payos"
)

type Order struct {
	ID            string         `json:"id" gorm:"column:id;primaryKey;type:varchar(36)"`
	OrderCode     int64          `json:"orderCode" gorm:"column:order_code;not null;uniqueIndex:uq_orders_order_code"`
	UserID        string         `json:"userId" gorm:"column:user_id;not null;index:idx_orders_user_id"`
	Amount        int64          `json:"amount" gorm:"column:amount;not null"`
	Currency      string         `json:"currency" gorm:"column:currency;not null"`
	Description   string         `json:"description,omitempty" gorm:"column:description"`
	Provider      string         `json:"provider" gorm:"column:provider;not null"`
	Metadata      datatypes.JSON `json:"metadata,omitempty" gorm:"column:metadata"`
	Status        Status         `json:"status" gorm:"column:status;type:varchar(16);not null;index:idx_orders_status_created_at,priority:1"`
	PaymentLinkID *string        `json:"paymentLinkId,omitempty" gorm:"column:payment_link_id"`
	CheckoutURL   *string        `json:"checkoutUrl,omitempty" gorm:"column:checkout_url"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"column:created_at;not null;index:idx_orders_status_created_at,priority:2"`
	UpdatedAt     time.Time      `json:"updatedAt" gorm:"column:updated_at;not null"`
}

func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns the internal id when the caller left it empty.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
