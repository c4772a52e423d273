package valueobjects

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFromProviderStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusPending, FromProviderStatus("pending"))
	assert.Equal(t, PaymentStatusWaitingForCapture, FromProviderStatus("waiting_for_capture"))
	assert.Equal(t, PaymentStatusSucceeded, FromProviderStatus("succeeded"))
	assert.Equal(t, PaymentStatusCancelled, FromProviderStatus("canceled"))
	assert.Equal(t, PaymentStatusFailed, FromProviderStatus(""))
}

func TestMoney(t *testing.T) {
	m := NewMoney(decimal.RequireFromString("33.333"), "")
	assert.Equal(t, "33.33", m.StringFixed())
	assert.Equal(t, DefaultCurrency, m.Currency())
	assert.True(t, m.IsPositive())
	assert.Equal(t, "33.33 RUB", m.String())

	assert.True(t, NewMoney(decimal.Zero, "RUB").IsZero())
	assert.True(t, m.Equals(NewMoney(decimal.RequireFromString("33.33"), "RUB")))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("card_change")
	assert.NoError(t, err)
	assert.True(t, m.IsCardChange())

	_, err = ParsePaymentMethod("cash")
	assert.Error(t, err)
}
