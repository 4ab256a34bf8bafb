package order

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/common/validation"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
)

// CheckoutCreator creates the hosted checkout link for a new order.
type CheckoutCreator interface {
	CreatePaymentLink(ctx context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutLink, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	checkout CheckoutCreator
	baseURL  string
	newCode  func() int64
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, checkout CheckoutCreator, baseURL string) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		checkout:    checkout,
		baseURL:     strings.TrimRight(baseURL, "/"),
		newCode:     func() int64 { return NewOrderCode(time.Now()) },
	}
}

// WithCodeGenerator overrides order code generation.
func (h *Handler) WithCodeGenerator(gen func() int64) *Handler {
	h.newCode = gen
	return h
}

// CreateOrder admits a pending order and attaches a provider checkout link to it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if appErr := validation.DecodeJSON(r, &req); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	ctx := r.Context()
	code := h.newCode()
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Order %d", code)
	}

	orderID, err := h.Service.CreateOrReusePending(ctx, AdmissionRequest{
		UserID:      errors.UserIDFromContext(ctx),
		Amount:      req.Amount,
		OrderCode:   code,
		Currency:    strings.ToUpper(req.Currency),
		Description: description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.Logger.Error("CreateOrder: admission failed", "error", err, "order_code", code)
		h.WriteAppError(w, err)
		return
	}

	redirect := "/orders/" + orderID
	link, err := h.checkout.CreatePaymentLink(ctx, paymentgateway.CheckoutRequest{
		OrderCode:   code,
		Amount:      req.Amount,
		Description: description,
		ReturnURL:   fmt.Sprintf("%s/payos/return?orderCode=%d&redirect=%s", h.baseURL, code, url.QueryEscape(redirect)),
		CancelURL:   h.baseURL + redirect,
	})
	if err != nil {
		h.Logger.Error("CreateOrder: checkout link failed", "error", err, "order_code", code, "order_id", orderID)
		h.WriteAppError(w, errors.NewExternalError("failed to create checkout link", errors.ErrCodeCheckoutFailed, err))
		return
	}

	// the order stays usable through its checkout url even if persisting the link fails
	if _, err := h.Service.AttachCheckoutInfo(ctx, code, link.PaymentLinkID, link.CheckoutURL); err != nil {
		h.Logger.Warn("CreateOrder: attach checkout info failed", "error", err, "order_code", code)
	}

	h.Logger.Info("CreateOrder: order created", "order_id", orderID, "order_code", code, "amount", req.Amount)

	h.WriteJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID:     orderID,
		OrderCode:   code,
		CheckoutURL: link.CheckoutURL,
		Redirect:    redirect,
	})
}

// GetStatus answers client polling on the return page.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.ParseInt(r.URL.Query().Get("orderCode"), 10, 64)
	if err != nil || code <= 0 {
		h.WriteAppError(w, errors.ErrInvalidOrderCode)
		return
	}

	view, err := h.Service.StatusByOrderCode(r.Context(), code)
	if err != nil {
		h.Logger.Error("GetStatus: lookup failed", "error", err, "order_code", code)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}

// GetOrder returns an order to its owner or to an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.Service.OrderByID(r.Context(), id)
	if err != nil {
		h.Logger.Error("GetOrder: lookup failed", "error", err, "order_id", id)
		h.WriteAppError(w, err)
		return
	}

	userID := errors.UserIDFromContext(r.Context())
	isAdmin := errors.RoleFromContext(r.Context()) == errors.RoleAdmin
	if o == nil || (!isAdmin && o.UserID != userID) {
		h.WriteAppError(w, errors.ErrOrderNotFound)
		return
	}

	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	limit = ClampLimit(limit)

	orders, err := h.Service.ListRecent(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Limit: limit})
}
