package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appErrors "github.com/thaohienhomes/phochat-payments/internal"
	orderDatamodel "github.com/thaohienhomes/phochat-payments/internal/core/datamodel/order"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	"github.com/thaohienhomes/phochat-payments/internal/core/events"
	"github.com/thaohienhomes/phochat-payments/internal/order"
	"github.com/thaohienhomes/phochat-payments/internal/transport"
)

type fakeCheckout struct {
	requests []paymentgateway.CheckoutRequest
	err      error
}

func (f *fakeCheckout) CreatePaymentLink(_ context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutLink, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &paymentgateway.CheckoutLink{
		PaymentLinkID: "plink-1",
		CheckoutURL:   "https://pay.example/checkout/plink-1",
		Status:        paymentgateway.PaymentStatusPending,
	}, nil
}

func withIdentity(userID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID != "" {
				ctx = appErrors.ContextWithUserID(ctx, userID)
			}
			if role != "" {
				ctx = appErrors.ContextWithRole(ctx, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var _ = Describe("Handler", func() {
	var (
		repo     *mockOrderRepository
		service  *order.Service
		checkout *fakeCheckout
		handler  *order.Handler
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = newMockOrderRepository()
		service = order.NewService(repo, events.NewEventBus(logger), logger)
		checkout = &fakeCheckout{}
		handler = order.NewHandler(transport.NewBaseHandler(logger), service, checkout, "https://shop.example/").
			WithCodeGenerator(func() int64 { return 1700000000123 })
	})

	router := func(userID, role string) http.Handler {
		r := chi.NewRouter()
		r.Use(withIdentity(userID, role))
		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/status", handler.GetStatus)
		r.Get("/orders/{id}", handler.GetOrder)
		r.Get("/orders", handler.ListOrders)
		return r
	}

	Describe("CreateOrder", func() {
		It("should admit the order and return the checkout url", func() {
			// Given
			body := bytes.NewBufferString(`{"amount":10000,"metadata":{"plan":"monthly"}}`)
			req := httptest.NewRequest(http.MethodPost, "/orders", body)
			rec := httptest.NewRecorder()

			// When
			router("user-1", "").ServeHTTP(rec, req)

			// Then
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var resp order.CreateOrderResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.OrderCode).To(Equal(int64(1700000000123)))
			Expect(resp.CheckoutURL).To(Equal("https://pay.example/checkout/plink-1"))
			Expect(resp.Redirect).To(Equal("/orders/" + resp.OrderID))

			Expect(checkout.requests).To(HaveLen(1))
			sent := checkout.requests[0]
			Expect(sent.Amount).To(Equal(int64(10000)))
			Expect(sent.Description).To(Equal("Order 1700000000123"))
			Expect(sent.CancelURL).To(Equal("https://shop.example/orders/" + resp.OrderID))

			returnURL, err := url.Parse(sent.ReturnURL)
			Expect(err).ToNot(HaveOccurred())
			Expect(returnURL.Path).To(Equal("/payos/return"))
			Expect(returnURL.Query().Get("orderCode")).To(Equal("1700000000123"))
			Expect(returnURL.Query().Get("redirect")).To(Equal(resp.Redirect))

			stored, _ := repo.GetByOrderCode(context.Background(), 1700000000123)
			Expect(stored.UserID).To(Equal("user-1"))
			Expect(stored.Status).To(Equal(orderDatamodel.StatusPending))
			Expect(*stored.PaymentLinkID).To(Equal("plink-1"))
		})

		It("should reject a non-positive amount", func() {
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{"amount":0}`))
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(string(appErrors.ErrCodeInvalidAmount)))
			Expect(checkout.requests).To(BeEmpty())
		})

		It("should reject malformed JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{"amount":`))
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring(string(appErrors.ErrCodeInvalidBody)))
		})

		It("should report a gateway failure but keep the pending order", func() {
			checkout.err = errors.New("provider down")
			req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(`{"amount":5000}`))
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadGateway))
			Expect(rec.Body.String()).To(ContainSubstring(string(appErrors.ErrCodeCheckoutFailed)))
			stored, _ := repo.GetByOrderCode(context.Background(), 1700000000123)
			Expect(stored).ToNot(BeNil())
			Expect(stored.UserID).To(Equal(appErrors.GuestUserID))
		})
	})

	Describe("GetStatus", func() {
		It("should return not_found for an unknown order", func() {
			req := httptest.NewRequest(http.MethodGet, "/orders/status?orderCode=42", nil)
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"status":"not_found","orderCode":42}`))
		})

		It("should reject a missing order code", func() {
			req := httptest.NewRequest(http.MethodGet, "/orders/status", nil)
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should report the current status", func() {
			repo.put(&orderDatamodel.Order{ID: "o-1", OrderCode: 42, Amount: 10000, Status: orderDatamodel.StatusSucceeded})
			req := httptest.NewRequest(http.MethodGet, "/orders/status?orderCode=42", nil)
			rec := httptest.NewRecorder()

			router("", "").ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(MatchJSON(`{"status":"succeeded","amount":10000,"orderCode":42,"orderId":"o-1"}`))
		})
	})

	Describe("GetOrder", func() {
		BeforeEach(func() {
			repo.put(&orderDatamodel.Order{ID: "o-1", OrderCode: 42, UserID: "owner", Amount: 10000, Status: orderDatamodel.StatusPending})
		})

		It("should return the order to its owner", func() {
			rec := httptest.NewRecorder()
			router("owner", "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var o orderDatamodel.Order
			Expect(json.Unmarshal(rec.Body.Bytes(), &o)).To(Succeed())
			Expect(o.OrderCode).To(Equal(int64(42)))
		})

		It("should return the order to an admin", func() {
			rec := httptest.NewRecorder()
			router("someone", appErrors.RoleAdmin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
		})

		It("should hide the order from other users", func() {
			rec := httptest.NewRecorder()
			router("intruder", "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("ListOrders", func() {
		It("should reject an unknown status filter", func() {
			rec := httptest.NewRecorder()
			router("admin", appErrors.RoleAdmin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=bogus", nil))

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should clamp the limit", func() {
			rec := httptest.NewRecorder()
			router("admin", appErrors.RoleAdmin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?limit=1000", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			var resp order.OrderListResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Limit).To(Equal(order.MaxListLimit))
		})
	})
})
