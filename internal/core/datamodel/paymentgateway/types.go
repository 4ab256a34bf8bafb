package paymentgateway

import (
	"errors"
	"strings"
)

// Provider status strings returned by the payment-request lookup.
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusPaid       = "PAID"
	PaymentStatusCancelled  = "CANCELLED"
	PaymentStatusExpired    = "EXPIRED"
)

// SuccessCode is the provider result code for a completed payment.
const SuccessCode = "00"

// VerifiedPayload is the authenticated subset of a webhook body.
type VerifiedPayload struct {
	OrderCode int64
	Code      string
	Status    string
	EventID   string
	Amount    int64
	Reference string
}

// CheckoutRequest asks the provider for a hosted checkout link.
type CheckoutRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	ReturnURL   string
	CancelURL   string
}

func (r *CheckoutRequest) Validate() error {
	if r.OrderCode <= 0 {
		return errors.New("order_code is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if strings.TrimSpace(r.ReturnURL) == "" || strings.TrimSpace(r.CancelURL) == "" {
		return errors.New("return and cancel urls are required")
	}
	return nil
}

type CheckoutLink struct {
	PaymentLinkID string `json:"paymentLinkId"`
	CheckoutURL   string `json:"checkoutUrl"`
	Status        string `json:"status"`
}
