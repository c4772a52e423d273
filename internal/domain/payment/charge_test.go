package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
)

func TestNewCharge(t *testing.T) {
	c, err := NewCharge(3, 1, "auto_payment_2_2026-04-10", now)
	require.NoError(t, err)
	assert.Equal(t, vo.PaymentStatusPending, c.Status())
	assert.False(t, c.HasProviderPayment())

	_, err = NewCharge(0, 1, "k", now)
	assert.Error(t, err)
	_, err = NewCharge(3, 0, "k", now)
	assert.Error(t, err)
	_, err = NewCharge(3, 1, "", now)
	assert.Error(t, err)
}

func TestCharge_Attach(t *testing.T) {
	c, err := NewCharge(3, 1, "k", now)
	require.NoError(t, err)

	c.Attach("prov_1", now)
	c.Attach("prov_2", now)
	require.True(t, c.HasProviderPayment())
	assert.Equal(t, "prov_1", *c.ProviderPaymentID())
}

func TestCharge_TerminalStatuses(t *testing.T) {
	c, err := NewCharge(3, 1, "k", now)
	require.NoError(t, err)

	assert.True(t, c.ApplyStatus(vo.PaymentStatusFailed, now))
	assert.False(t, c.IsTerminal())
	assert.True(t, c.ApplyStatus(vo.PaymentStatusCancelled, now))
	assert.False(t, c.ApplyStatus(vo.PaymentStatusSucceeded, now))
	assert.Equal(t, vo.PaymentStatusCancelled, c.Status())

	ok, err := NewCharge(3, 1, "k2", now)
	require.NoError(t, err)
	assert.True(t, ok.ApplyStatus(vo.PaymentStatusSucceeded, now))
	assert.False(t, ok.ApplyStatus(vo.PaymentStatusCancelled, now))
}

func TestCharge_CanBeReplacedBy(t *testing.T) {
	c, err := NewCharge(3, 1, "k", now)
	require.NoError(t, err)
	c.Attach("prov_1", now)

	// Unknown or in-progress outcomes never allow a second charge.
	assert.False(t, c.CanBeReplacedBy(2))
	c.ApplyStatus(vo.PaymentStatusFailed, now)
	assert.False(t, c.CanBeReplacedBy(2))

	c.ApplyStatus(vo.PaymentStatusCancelled, now)
	assert.False(t, c.CanBeReplacedBy(1))
	assert.True(t, c.CanBeReplacedBy(2))
}

func TestCharge_MarkRefunded(t *testing.T) {
	c, err := NewCharge(3, 1, "k", now)
	require.NoError(t, err)
	assert.ErrorIs(t, c.MarkRefunded("ref_1", now), ErrChargeNotSucceeded)

	c.Attach("prov_1", now)
	c.ApplyStatus(vo.PaymentStatusSucceeded, now)
	require.NoError(t, c.MarkRefunded("ref_1", now))
	assert.True(t, c.IsRefunded())
	assert.ErrorIs(t, c.MarkRefunded("ref_2", now), ErrChargeRefunded)
}
