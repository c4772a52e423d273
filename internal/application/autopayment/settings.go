// Package autopayment holds the ports and runtime settings of the renewal engine.
package autopayment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orris-inc/autopay/internal/shared/config"
)

// Settings are the runtime knobs read at every task entry.
type Settings struct {
	StartHour            int `json:"start_hour" validate:"min=0,max=23"`
	StartMinute          int `json:"start_minute" validate:"min=0,max=59"`
	EndHour              int `json:"end_hour" validate:"min=0,max=23"`
	EndMinute            int `json:"end_minute" validate:"min=0,max=59"`
	MaxAttempts          int `json:"max_attempts" validate:"min=1,max=10"`
	RetryIntervalSeconds int `json:"retry_interval_seconds" validate:"min=1,max=3600"`
	RedisTTLHours        int `json:"redis_ttl_hours" validate:"min=1,max=168"`
	TrialPeriodDays      int `json:"trial_period_days" validate:"min=1,max=365"`
}

var validate = validator.New()

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		StartHour:            0,
		StartMinute:          5,
		EndHour:              23,
		EndMinute:            55,
		MaxAttempts:          3,
		RetryIntervalSeconds: 60,
		RedisTTLHours:        48,
		TrialPeriodDays:      7,
	}
}

// SettingsFromConfig builds defaults from the static config file.
func SettingsFromConfig(cfg config.AutoPaymentConfig) Settings {
	return Settings{
		StartHour:            cfg.StartHour,
		StartMinute:          cfg.StartMinute,
		EndHour:              cfg.EndHour,
		EndMinute:            cfg.EndMinute,
		MaxAttempts:          cfg.MaxAttempts,
		RetryIntervalSeconds: cfg.RetryIntervalSeconds,
		RedisTTLHours:        cfg.RedisTTLHours,
		TrialPeriodDays:      cfg.TrialPeriodDays,
	}
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid auto payment settings: %w", err)
	}
	return nil
}

func (s Settings) RetryInterval() time.Duration {
	return time.Duration(s.RetryIntervalSeconds) * time.Second
}

func (s Settings) InFlightTTL() time.Duration {
	return time.Duration(s.RedisTTLHours) * time.Hour
}

// CollectorCron is the daily crontab of the collector job.
func (s Settings) CollectorCron() string {
	return fmt.Sprintf("%d %d * * *", s.StartMinute, s.StartHour)
}

// SweeperCron is the daily crontab of the cancelled-waiting sweeper.
func (s Settings) SweeperCron() string {
	return fmt.Sprintf("%d %d * * *", s.EndMinute, s.EndHour)
}

// SettingsProvider loads the current settings. Implementations must not cache.
type SettingsProvider interface {
	Load(ctx context.Context) (Settings, error)
}

// SettingsStore persists settings for the admin API.
type SettingsStore interface {
	SettingsProvider
	Save(ctx context.Context, settings Settings) error
}

// SettingsChangePublisher tells running schedulers that the stored
// settings changed.
type SettingsChangePublisher interface {
	PublishSettingsChanged(ctx context.Context, collectorCron, sweeperCron string) error
}

// StaticSettings serves fixed settings.
type StaticSettings Settings

func (s StaticSettings) Load(context.Context) (Settings, error) {
	return Settings(s), nil
}

// InFlightSet is the advisory dated set of subscriptions being processed.
type InFlightSet interface {
	Add(ctx context.Context, day time.Time, subscriptionIDs []uint, ttl time.Duration) error
	Remove(ctx context.Context, day time.Time, subscriptionID uint) error
	Members(ctx context.Context, day time.Time) ([]uint, error)
}
