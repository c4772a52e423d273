// Package provider is the HTTP adapter for the YooKassa-style payment API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	sharedConfig "github.com/orris-inc/autopay/internal/shared/config"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const headerIdempotenceKey = "Idempotence-Key"

// Client implements paymentgateway.PaymentGateway over HTTP.
// Mutating requests carry the caller's idempotency key on every retry.
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	httpClient *http.Client

	maxAttempts    uint
	totalTimeout   time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitter         float64

	logger logger.Interface
}

var _ paymentgateway.PaymentGateway = (*Client)(nil)

func NewClient(cfg sharedConfig.ProviderConfig, logger logger.Interface) *Client {
	connectTimeout := cfg.ConnectTimeout()
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	totalTimeout := cfg.TotalTimeout()
	if totalTimeout <= 0 {
		totalTimeout = 60 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		shopID:         cfg.ShopID,
		secretKey:      cfg.SecretKey,
		httpClient:     &http.Client{Transport: transport, Timeout: totalTimeout},
		maxAttempts:    uint(maxAttempts),
		totalTimeout:   totalTimeout,
		initialBackoff: time.Duration(cfg.InitialBackoffMillis) * time.Millisecond,
		maxBackoff:     time.Duration(cfg.MaxBackoffMillis) * time.Millisecond,
		jitter:         cfg.Jitter,
		logger:         logger,
	}
}

func (c *Client) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.PaymentInfo, error) {
	body := createPaymentBody{
		Amount:            newAmount(req.Amount, req.Currency),
		Capture:           req.Capture,
		Description:       req.Description,
		PaymentMethodID:   req.PaymentMethodID,
		SavePaymentMethod: req.SavePaymentMethod,
		Metadata:          req.Metadata,
	}
	if req.PaymentMethodID == "" {
		body.Confirmation = &confirmation{Type: "redirect", ReturnURL: req.ReturnURL}
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (c *Client) CapturePayment(ctx context.Context, providerPaymentID string, value decimal.Decimal, currency, idempotencyKey string) (*paymentgateway.PaymentInfo, error) {
	var resp paymentResponse
	path := "/payments/" + url.PathEscape(providerPaymentID) + "/capture"
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, captureBody{Amount: newAmount(value, currency)}, &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (c *Client) CancelPayment(ctx context.Context, providerPaymentID, idempotencyKey string) (*paymentgateway.PaymentInfo, error) {
	var resp paymentResponse
	path := "/payments/" + url.PathEscape(providerPaymentID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (c *Client) GetPayment(ctx context.Context, providerPaymentID string) (*paymentgateway.PaymentInfo, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(providerPaymentID), "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (c *Client) CreateRefund(ctx context.Context, req paymentgateway.CreateRefundRequest) (*paymentgateway.RefundInfo, error) {
	body := createRefundBody{
		PaymentID:   req.ProviderPaymentID,
		Amount:      newAmount(req.Amount, req.Currency),
		Description: req.Description,
	}
	var resp refundResponse
	if err := c.do(ctx, http.MethodPost, "/refunds", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toInfo(), nil
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if c.initialBackoff > 0 {
		b.InitialInterval = c.initialBackoff
	}
	if c.maxBackoff > 0 {
		b.MaxInterval = c.maxBackoff
	}
	if c.jitter > 0 {
		b.RandomizationFactor = c.jitter
	}
	return b
}

// do sends one logical request, retrying transient failures with jittered
// exponential backoff. Permanent failures return immediately.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := c.send(ctx, method, path, idempotencyKey, payload, out)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsTransient(err) || ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	notify := func(err error, next time.Duration) {
		c.logger.Warnw("payment provider request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"next_in", next,
			"error", err,
		)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithMaxElapsedTime(c.totalTimeout),
		backoff.WithNotify(notify),
	)
	return err
}

func (c *Client) send(ctx context.Context, method, path, idempotencyKey string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotenceKey, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &Error{StatusCode: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
			perr.Code = apiErr.Code
			perr.Description = apiErr.Description
		}
		return perr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
