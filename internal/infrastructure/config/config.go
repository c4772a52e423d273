package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/autopay/internal/shared/config"
)

type Config struct {
	Server      sharedConfig.ServerConfig      `mapstructure:"server"`
	Database    sharedConfig.DatabaseConfig    `mapstructure:"database"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
	Redis       sharedConfig.RedisConfig       `mapstructure:"redis"`
	Provider    sharedConfig.ProviderConfig    `mapstructure:"provider"`
	Telegram    sharedConfig.TelegramConfig    `mapstructure:"telegram"`
	AutoPayment sharedConfig.AutoPaymentConfig `mapstructure:"auto_payment"`
	Worker      sharedConfig.WorkerConfig      `mapstructure:"worker"`
	Admin       sharedConfig.AdminConfig       `mapstructure:"admin"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")

	v.SetEnvPrefix("AUTOPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine, env + defaults are enough to boot
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.rate_limit_per_minute", 60)
	v.SetDefault("server.rate_limit_per_hour", 600)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "autopay_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("provider.driver", "http")
	v.SetDefault("provider.base_url", "https://api.yookassa.ru/v3")
	v.SetDefault("provider.currency", "RUB")
	v.SetDefault("provider.card_change_amount", "1.00")
	v.SetDefault("provider.connect_timeout_seconds", 5)
	v.SetDefault("provider.total_timeout_seconds", 60)
	v.SetDefault("provider.max_attempts", 5)
	v.SetDefault("provider.initial_backoff_millis", 500)
	v.SetDefault("provider.max_backoff_millis", 8000)
	v.SetDefault("provider.jitter", 0.5)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_url", "https://api.telegram.org")

	v.SetDefault("auto_payment.start_hour", 0)
	v.SetDefault("auto_payment.start_minute", 5)
	v.SetDefault("auto_payment.end_hour", 23)
	v.SetDefault("auto_payment.end_minute", 55)
	v.SetDefault("auto_payment.max_attempts", 3)
	v.SetDefault("auto_payment.retry_interval_seconds", 60)
	v.SetDefault("auto_payment.redis_ttl_hours", 48)
	v.SetDefault("auto_payment.trial_period_days", 7)
	v.SetDefault("auto_payment.job_max_retries", 5)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.task_timeout_seconds", 120)
	v.SetDefault("worker.task_max_retries", 5)
	v.SetDefault("worker.poll_interval_millis", 1000)
	v.SetDefault("worker.stuck_after_seconds", 600)
	v.SetDefault("worker.key_prefix", "autopay:")
	v.SetDefault("worker.retry_base_seconds", 5)
	v.SetDefault("worker.retry_max_seconds", 600)
	v.SetDefault("worker.run_scheduler", true)

	v.SetDefault("admin.api_token", "")
}
