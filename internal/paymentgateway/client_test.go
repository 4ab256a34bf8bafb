package paymentgateway_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appErrors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
	gateway "github.com/thaohienhomes/phochat-payments/internal/paymentgateway"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   *gateway.Client
		lastReq  *http.Request
		lastBody map[string]interface{}
		respond  func(w http.ResponseWriter)
	)

	BeforeEach(func() {
		ctx = context.Background()
		lastReq, lastBody = nil, nil
		respond = func(w http.ResponseWriter) {
			_, _ = io.WriteString(w, `{"code":"00","desc":"success","data":{}}`)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				_ = json.Unmarshal(raw, &lastBody)
			}
			w.Header().Set("Content-Type", "application/json")
			respond(w)
		}))
		client = gateway.NewClient(gateway.Config{
			APIURL:      server.URL + "/",
			ClientID:    "client-1",
			APIKey:      "api-key-1",
			ChecksumKey: checksumKey,
			Timeout:     2 * time.Second,
		}, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("CreatePaymentLink", func() {
		req := paymentgateway.CheckoutRequest{
			OrderCode:   1001,
			Amount:      10000,
			Description: "Order 1001",
			ReturnURL:   "https://shop.example/payos/return?orderCode=1001",
			CancelURL:   "https://shop.example/orders/o-1",
		}

		It("should send a signed request and return the link", func() {
			respond = func(w http.ResponseWriter) {
				_, _ = io.WriteString(w, `{"code":"00","desc":"success","data":{"paymentLinkId":"plink","checkoutUrl":"https://pay.example/plink","status":"PENDING"}}`)
			}

			link, err := client.CreatePaymentLink(ctx, req)

			Expect(err).ToNot(HaveOccurred())
			Expect(link.PaymentLinkID).To(Equal("plink"))
			Expect(link.CheckoutURL).To(Equal("https://pay.example/plink"))

			Expect(lastReq.Method).To(Equal(http.MethodPost))
			Expect(lastReq.URL.Path).To(Equal("/v2/payment-requests"))
			Expect(lastReq.Header.Get("x-client-id")).To(Equal("client-1"))
			Expect(lastReq.Header.Get("x-api-key")).To(Equal("api-key-1"))

			expected := "amount=10000&cancelUrl=https://shop.example/orders/o-1&description=Order 1001&orderCode=1001&returnUrl=https://shop.example/payos/return?orderCode=1001"
			Expect(lastBody["signature"]).To(Equal(hex.EncodeToString(gateway.Sign([]byte(checksumKey), expected))))
			Expect(lastBody["orderCode"]).To(BeNumerically("==", 1001))
		})

		It("should surface a provider error code", func() {
			respond = func(w http.ResponseWriter) {
				_, _ = io.WriteString(w, `{"code":"231","desc":"order exists"}`)
			}

			_, err := client.CreatePaymentLink(ctx, req)

			Expect(err).To(MatchError(ContainSubstring("order exists")))
		})

		It("should surface an HTTP failure", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}

			_, err := client.CreatePaymentLink(ctx, req)

			Expect(err).To(MatchError(ContainSubstring("503")))
		})

		It("should validate before calling the provider", func() {
			_, err := client.CreatePaymentLink(ctx, paymentgateway.CheckoutRequest{OrderCode: 1})

			Expect(err).To(HaveOccurred())
			Expect(lastReq).To(BeNil())
		})
	})

	Describe("GetPaymentStatus", func() {
		It("should return the upper-cased provider status", func() {
			respond = func(w http.ResponseWriter) {
				_, _ = io.WriteString(w, `{"code":"00","desc":"success","data":{"orderCode":1001,"status":"paid"}}`)
			}

			status, err := client.GetPaymentStatus(ctx, 1001)

			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(paymentgateway.PaymentStatusPaid))
			Expect(lastReq.URL.Path).To(Equal("/v2/payment-requests/1001"))
		})

		It("should report provider errors as gateway failures", func() {
			respond = func(w http.ResponseWriter) {
				_, _ = io.WriteString(w, `{"code":"101","desc":"order not found"}`)
			}

			_, err := client.GetPaymentStatus(ctx, 1001)

			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(appErrors.ErrCodeGatewayFailed))
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(err).To(MatchError(ContainSubstring("order not found")))
		})
	})

	Describe("ConfirmWebhook", func() {
		It("should post the webhook url", func() {
			Expect(client.ConfirmWebhook(ctx, "https://shop.example/api/v1/payos/webhook")).To(Succeed())

			Expect(lastReq.URL.Path).To(Equal("/confirm-webhook"))
			Expect(lastBody["webhookUrl"]).To(Equal("https://shop.example/api/v1/payos/webhook"))
		})

		It("should report a rejected confirmation as a gateway failure", func() {
			respond = func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusUnauthorized)
			}

			err := client.ConfirmWebhook(ctx, "https://shop.example/api/v1/payos/webhook")

			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(appErrors.ErrCodeGatewayFailed))
		})

		It("should require a url", func() {
			Expect(client.ConfirmWebhook(ctx, " ")).ToNot(Succeed())
		})
	})
})
