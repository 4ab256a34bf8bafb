package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
)

// IsTerminal reports whether status is a sink state.
func IsTerminal(status orderDatamodel.Status) bool {
	switch status {
	case orderDatamodel.StatusSucceeded, orderDatamodel.StatusFailed, orderDatamodel.StatusExpired:
		return true
	}
	return false
}

// CanTransition allows only pending -> terminal.
func CanTransition(current, requested orderDatamodel.Status) bool {
	return current == orderDatamodel.StatusPending && IsTerminal(requested)
}

// ParseStatus accepts one of the four stored statuses, case-insensitively.
func ParseStatus(raw string) (orderDatamodel.Status, error) {
	status := orderDatamodel.Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case orderDatamodel.StatusPending, orderDatamodel.StatusSucceeded,
		orderDatamodel.StatusFailed, orderDatamodel.StatusExpired:
		return status, nil
	}
	return "", errors.ErrInvalidStatus
}

// StatusFromPayload maps a verified provider payload to the requested status.
// It is the only place that interprets provider result fields.
func StatusFromPayload(p paymentgateway.VerifiedPayload) orderDatamodel.Status {
	if p.Code == paymentgateway.SuccessCode {
		return orderDatamodel.StatusSucceeded
	}
	if strings.EqualFold(strings.TrimSpace(p.Status), paymentgateway.PaymentStatusPaid) {
		return orderDatamodel.StatusSucceeded
	}
	return orderDatamodel.StatusFailed
}

// ApplyTransition runs the conditional update against repo. Requests that are
// not terminal never reach the store.
func ApplyTransition(ctx context.Context, repo RepositoryAPI, orderCode int64, requested orderDatamodel.Status, at time.Time) (*TransitionResult, error) {
	if !IsTerminal(requested) {
		return nil, errors.ErrInvalidStatus
	}

	o, applied, err := repo.SetStatusIfPending(ctx, orderCode, requested, at)
	if err != nil {
		return nil, fmt.Errorf("set status if pending: %w", err)
	}

	return &TransitionResult{Order: o, Applied: applied, Requested: requested}, nil
}
