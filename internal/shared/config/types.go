package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`
	BaseURL         string `mapstructure:"base_url"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
	// Per client IP on /api routes; zero disables the window.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitPerHour   int `mapstructure:"rate_limit_per_hour"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// GetDSN builds the MySQL DSN. Timestamps are parsed and written in UTC.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ProviderConfig configures the payment provider adapter.
// Driver "fake" swaps the HTTP client for an in-memory gateway.
type ProviderConfig struct {
	Driver                string  `mapstructure:"driver"`
	BaseURL               string  `mapstructure:"base_url"`
	ShopID                string  `mapstructure:"shop_id"`
	SecretKey             string  `mapstructure:"secret_key"`
	ReturnURL             string  `mapstructure:"return_url"`
	Currency              string  `mapstructure:"currency"`
	CardChangeAmount      string  `mapstructure:"card_change_amount"`
	ConnectTimeoutSeconds int     `mapstructure:"connect_timeout_seconds"`
	TotalTimeoutSeconds   int     `mapstructure:"total_timeout_seconds"`
	MaxAttempts           int     `mapstructure:"max_attempts"`
	InitialBackoffMillis  int     `mapstructure:"initial_backoff_millis"`
	MaxBackoffMillis      int     `mapstructure:"max_backoff_millis"`
	Jitter                float64 `mapstructure:"jitter"`
}

func (p *ProviderConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutSeconds) * time.Second
}

func (p *ProviderConfig) TotalTimeout() time.Duration {
	return time.Duration(p.TotalTimeoutSeconds) * time.Second
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIURL   string `mapstructure:"api_url"`
}

// AutoPaymentConfig holds the static defaults for the runtime renewal settings.
type AutoPaymentConfig struct {
	StartHour            int `mapstructure:"start_hour"`
	StartMinute          int `mapstructure:"start_minute"`
	EndHour              int `mapstructure:"end_hour"`
	EndMinute            int `mapstructure:"end_minute"`
	MaxAttempts          int `mapstructure:"max_attempts"`
	RetryIntervalSeconds int `mapstructure:"retry_interval_seconds"`
	RedisTTLHours        int `mapstructure:"redis_ttl_hours"`
	TrialPeriodDays      int `mapstructure:"trial_period_days"`
	JobMaxRetries        int `mapstructure:"job_max_retries"`
}

// WorkerConfig configures the task broker consumers.
type WorkerConfig struct {
	Concurrency        int    `mapstructure:"concurrency"`
	TaskTimeoutSeconds int    `mapstructure:"task_timeout_seconds"`
	TaskMaxRetries     int    `mapstructure:"task_max_retries"`
	PollIntervalMillis int    `mapstructure:"poll_interval_millis"`
	StuckAfterSeconds  int    `mapstructure:"stuck_after_seconds"`
	KeyPrefix          string `mapstructure:"key_prefix"`
	RetryBaseSeconds   int    `mapstructure:"retry_base_seconds"`
	RetryMaxSeconds    int    `mapstructure:"retry_max_seconds"`
	RunSchedulerInProc bool   `mapstructure:"run_scheduler"`
}

type AdminConfig struct {
	APIToken string `mapstructure:"api_token"`
}
