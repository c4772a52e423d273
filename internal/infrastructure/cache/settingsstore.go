package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// SettingsKey holds the runtime auto-payment settings as JSON.
const SettingsKey = "auto_payment:config"

// SettingsStore reads settings from Redis on every call. A missing or
// malformed value falls back to the static defaults.
type SettingsStore struct {
	client   *redis.Client
	defaults autopayment.Settings
	logger   logger.Interface
}

func NewSettingsStore(client *redis.Client, defaults autopayment.Settings, logger logger.Interface) *SettingsStore {
	return &SettingsStore{client: client, defaults: defaults, logger: logger}
}

func (s *SettingsStore) Load(ctx context.Context) (autopayment.Settings, error) {
	raw, err := s.client.Get(ctx, SettingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return s.defaults, nil
		}
		return autopayment.Settings{}, fmt.Errorf("failed to read auto payment settings: %w", err)
	}

	// Start from defaults so keys missing from the stored JSON keep them.
	settings := s.defaults
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logger.Warnw("stored auto payment settings are not valid JSON, using defaults", "error", err)
		return s.defaults, nil
	}
	if err := settings.Validate(); err != nil {
		s.logger.Warnw("stored auto payment settings rejected, using defaults", "error", err)
		return s.defaults, nil
	}
	return settings, nil
}

func (s *SettingsStore) Save(ctx context.Context, settings autopayment.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode auto payment settings: %w", err)
	}
	if err := s.client.Set(ctx, SettingsKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save auto payment settings: %w", err)
	}
	return nil
}
