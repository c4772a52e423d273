package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	sharedConfig "github.com/orris-inc/autopay/internal/shared/config"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(sharedConfig.ProviderConfig{
		BaseURL:              srv.URL,
		ShopID:               "shop",
		SecretKey:            "secret",
		MaxAttempts:          5,
		InitialBackoffMillis: 1,
		MaxBackoffMillis:     5,
		TotalTimeoutSeconds:  10,
	}, logger.Discard())
}

func TestCreatePayment_SavedMethod(t *testing.T) {
	var got createPaymentBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "sub_7_2026-04-10", r.Header.Get(headerIdempotenceKey))
		assert.Equal(t, "/payments", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"id":"pay_1","status":"succeeded","paid":true,
			"amount":{"value":"100.00","currency":"RUB"},
			"payment_method":{"type":"bank_card","id":"pm_1","saved":true}}`))
	})

	info, err := client.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount:          decimal.NewFromInt(100),
		Currency:        "RUB",
		IdempotencyKey:  "sub_7_2026-04-10",
		Capture:         true,
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "100.00", got.Amount.Value)
	assert.Equal(t, "pm_1", got.PaymentMethodID)
	assert.Nil(t, got.Confirmation)
	assert.Equal(t, "pay_1", info.ID)
	assert.Equal(t, "succeeded", info.Status)
	assert.True(t, info.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "pm_1", info.SavedMethodID())
}

func TestCreatePayment_RedirectConfirmation(t *testing.T) {
	var got createPaymentBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"pay_2","status":"pending","amount":{"value":"9.90","currency":"RUB"},
			"confirmation":{"type":"redirect","confirmation_url":"https://pay.test/c/2"}}`))
	})

	info, err := client.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount:            decimal.RequireFromString("9.9"),
		Currency:          "RUB",
		IdempotencyKey:    "key",
		Capture:           true,
		SavePaymentMethod: true,
		ReturnURL:         "https://app.test/back",
	})
	require.NoError(t, err)

	require.NotNil(t, got.Confirmation)
	assert.Equal(t, "https://app.test/back", got.Confirmation.ReturnURL)
	assert.True(t, got.SavePaymentMethod)
	assert.Equal(t, "9.90", got.Amount.Value)
	assert.Equal(t, "https://pay.test/c/2", info.ConfirmationURL)
	assert.Empty(t, info.SavedMethodID())
}

func TestRetriesTransientFailuresWithSameKey(t *testing.T) {
	var calls atomic.Int32
	keys := make(chan string, 5)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get(headerIdempotenceKey)
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"id":"rf_1","payment_id":"pay_1","status":"succeeded","amount":{"value":"33.33","currency":"RUB"}}`))
		}
	})

	info, err := client.CreateRefund(context.Background(), paymentgateway.CreateRefundRequest{
		ProviderPaymentID: "pay_1",
		Amount:            decimal.RequireFromString("33.33"),
		Currency:          "RUB",
		IdempotencyKey:    "refund-key",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "rf_1", info.ID)

	close(keys)
	for key := range keys {
		assert.Equal(t, "refund-key", key)
	}
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","code":"invalid_request","description":"payment_method_id is invalid"}`))
	})

	_, err := client.CreatePayment(context.Background(), paymentgateway.CreatePaymentRequest{
		Amount: decimal.NewFromInt(1), Currency: "RUB", IdempotencyKey: "k", PaymentMethodID: "bad",
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, IsPermanent(err))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "invalid_request", perr.Code)
	assert.Equal(t, "payment_method_id is invalid", perr.Description)
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetPayment(context.Background(), "pay_1")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(5), calls.Load())
}

func TestGetPaymentNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get(headerIdempotenceKey))
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestCaptureAndCancelPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay_9","status":"canceled","amount":{"value":"1.00","currency":"RUB"}}`))
	})

	_, err := client.CapturePayment(context.Background(), "pay_9", decimal.NewFromInt(1), "RUB", "cap")
	require.NoError(t, err)
	info, err := client.CancelPayment(context.Background(), "pay_9", "cancel")
	require.NoError(t, err)

	assert.Equal(t, []string{"/payments/pay_9/capture", "/payments/pay_9/cancel"}, paths)
	assert.Equal(t, "canceled", info.Status)
}
