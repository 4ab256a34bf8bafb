package paymentgateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	errors "github.com/thaohienhomes/phochat-payments/internal"
	"github.com/thaohienhomes/phochat-payments/internal/core/datamodel/paymentgateway"
)

type Config struct {
	APIURL      string
	ClientID    string
	APIKey      string
	ChecksumKey string
	Timeout     time.Duration
}

// Client talks to the provider's merchant API.
type Client struct {
	apiURL      string
	clientID    string
	apiKey      string
	checksumKey []byte
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:      strings.TrimRight(config.APIURL, "/"),
		clientID:    config.ClientID,
		apiKey:      config.APIKey,
		checksumKey: []byte(config.ChecksumKey),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type apiResponse struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type createLinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

// CreatePaymentLink registers the order with the provider and returns the
// hosted checkout link.
func (c *Client) CreatePaymentLink(ctx context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutLink, error) {
	if err := req.Validate(); err != nil {
		c.logger.Error("checkout request validation failed", "error", err, "order_code", req.OrderCode)
		return nil, fmt.Errorf("validation error: %w", err)
	}

	signed := fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
		req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL)

	body := createLinkRequest{
		OrderCode:   req.OrderCode,
		Amount:      req.Amount,
		Description: req.Description,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		Signature:   hex.EncodeToString(Sign(c.checksumKey, signed)),
	}

	var link paymentgateway.CheckoutLink
	if err := c.do(ctx, http.MethodPost, "/v2/payment-requests", body, &link); err != nil {
		return nil, fmt.Errorf("create payment link for order %d: %w", req.OrderCode, err)
	}
	if link.CheckoutURL == "" {
		return nil, fmt.Errorf("create payment link for order %d: empty checkout url", req.OrderCode)
	}

	c.logger.Info("payment link created",
		"order_code", req.OrderCode,
		"payment_link_id", link.PaymentLinkID,
		"status", link.Status)

	return &link, nil
}

// GetPaymentStatus returns the provider's status string for an order, such as
// PAID or CANCELLED. Failures are GATEWAY_FAILED external errors.
func (c *Client) GetPaymentStatus(ctx context.Context, orderCode int64) (string, error) {
	var data struct {
		OrderCode int64  `json:"orderCode"`
		Status    string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/payment-requests/"+strconv.FormatInt(orderCode, 10), nil, &data); err != nil {
		return "", errors.NewExternalError("payment status lookup failed", errors.ErrCodeGatewayFailed,
			fmt.Errorf("order %d: %w", orderCode, err))
	}
	c.logger.Debug("payment status fetched", "order_code", orderCode, "status", data.Status)
	return strings.ToUpper(data.Status), nil
}

// ConfirmWebhook registers url as the merchant's webhook endpoint.
func (c *Client) ConfirmWebhook(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("webhook url is required")
	}
	body := map[string]string{"webhookUrl": url}
	if err := c.do(ctx, http.MethodPost, "/confirm-webhook", body, nil); err != nil {
		return errors.NewExternalError("webhook confirmation failed", errors.ErrCodeGatewayFailed,
			fmt.Errorf("url %s: %w", url, err))
	}
	c.logger.Info("webhook url confirmed", "url", url)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != paymentgateway.SuccessCode {
		return fmt.Errorf("provider error %s: %s", envelope.Code, envelope.Desc)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
