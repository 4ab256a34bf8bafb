package order

import (
	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
)

type CreateOrderRequest struct {
	Amount      int64                  `json:"amount" validate:"required,gt=0"`
	Description string                 `json:"description" validate:"max=25"`
	Currency    string                 `json:"currency" validate:"omitempty,len=3"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type CreateOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderCode   int64  `json:"orderCode"`
	CheckoutURL string `json:"checkoutUrl"`
	Redirect    string `json:"redirect"`
}

type OrderListResponse struct {
	Orders []*orderDatamodel.Order `json:"orders"`
	Limit  int                     `json:"limit"`
}
