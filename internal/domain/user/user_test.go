package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	u, err := NewUser("  42 ", now)
	require.NoError(t, err)
	assert.Equal(t, "42", u.ExternalID())
	assert.False(t, u.HasSavedPaymentMethod())

	_, err = NewUser(" ", now)
	assert.Error(t, err)
}

func TestUser_PaymentMethod(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := ReconstructUser(1, "42", nil, now, now)

	later := now.Add(time.Hour)
	assert.True(t, u.SavePaymentMethod("pm_1", later))
	assert.True(t, u.HasSavedPaymentMethod())
	assert.Equal(t, later, u.UpdatedAt())

	assert.False(t, u.SavePaymentMethod("pm_1", later.Add(time.Hour)))
	assert.False(t, u.SavePaymentMethod("", later))

	u.ClearPaymentMethod(later.Add(2 * time.Hour))
	assert.False(t, u.HasSavedPaymentMethod())
	assert.Nil(t, u.SavedPaymentMethodID())
}
