package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/testutil"
)

var today = time.Date(2026, 4, 10, 0, 5, 0, 0, time.UTC)

func TestInFlightSet(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	set := NewInFlightSet(client)
	ctx := context.Background()

	require.NoError(t, set.Add(ctx, today, []uint{3, 1, 2}, 48*time.Hour))
	assert.Equal(t, "auto_payment:subscriptions:2026-04-10", InFlightKey(today))
	assert.Equal(t, 48*time.Hour, mr.TTL(InFlightKey(today)))

	require.NoError(t, set.Remove(ctx, today, 2))
	ids, err := set.Members(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids)

	other, err := set.Members(ctx, today.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, set.Add(ctx, today, nil, time.Hour))
}

func TestInFlightSet_Expires(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	set := NewInFlightSet(client)
	ctx := context.Background()

	require.NoError(t, set.Add(ctx, today, []uint{1}, time.Hour))
	mr.FastForward(2 * time.Hour)

	ids, err := set.Members(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSettingsStore(t *testing.T) {
	client, mr := testutil.NewRedis(t)
	defaults := autopayment.DefaultSettings()
	store := NewSettingsStore(client, defaults, logger.Discard())
	ctx := context.Background()

	t.Run("missing key uses defaults", func(t *testing.T) {
		settings, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, defaults, settings)
	})

	t.Run("save and load", func(t *testing.T) {
		updated := defaults
		updated.MaxAttempts = 5
		updated.RetryIntervalSeconds = 120
		require.NoError(t, store.Save(ctx, updated))

		settings, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, updated, settings)
	})

	t.Run("partial JSON keeps other defaults", func(t *testing.T) {
		require.NoError(t, mr.Set(SettingsKey, `{"max_attempts": 4}`))

		settings, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, settings.MaxAttempts)
		assert.Equal(t, defaults.RetryIntervalSeconds, settings.RetryIntervalSeconds)
	})

	t.Run("malformed value falls back", func(t *testing.T) {
		require.NoError(t, mr.Set(SettingsKey, `{"max_attempts": 42}`))
		settings, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, defaults, settings)

		require.NoError(t, mr.Set(SettingsKey, `not json`))
		settings, err = store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, defaults, settings)
	})

	t.Run("invalid save rejected", func(t *testing.T) {
		bad := defaults
		bad.RetryIntervalSeconds = 0
		require.Error(t, store.Save(ctx, bad))
	})
}

func TestJobLock(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	lock := NewJobLock(client)
	ctx := context.Background()

	release, ok, err := lock.TryAcquire(ctx, "collector", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "collector", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release(ctx)
	_, ok, err = lock.TryAcquire(ctx, "collector", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
