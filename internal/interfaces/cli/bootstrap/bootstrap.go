// Package bootstrap loads configuration and opens the shared connections
// used by the server and worker commands.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/infrastructure/config"
	"github.com/orris-inc/autopay/internal/infrastructure/database"
	httpContainer "github.com/orris-inc/autopay/internal/interfaces/http"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const redisPingTimeout = 5 * time.Second

// Runtime holds the process-wide dependencies of a command.
type Runtime struct {
	Env    string
	Config *config.Config
	Logger logger.Interface
	DB     *gorm.DB
	Redis  *redis.Client
}

// ResolveEnv lets the ENV variable override the --env flag.
func ResolveEnv(flagValue string) string {
	if envVar := os.Getenv("ENV"); envVar != "" {
		return envVar
	}
	return flagValue
}

// LoadConfig loads the config and installs the logger.
func LoadConfig(env string) (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, MapEnvToGinMode(env) == "debug"); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.NewLogger(), nil
}

// Init loads configuration and connects to MySQL and Redis.
func Init(env string) (*Runtime, error) {
	cfg, log, err := LoadConfig(env)
	if err != nil {
		return nil, err
	}

	if err := database.Init(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		_ = database.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())

	return &Runtime{
		Env:    env,
		Config: cfg,
		Logger: log,
		DB:     database.Get(),
		Redis:  redisClient,
	}, nil
}

// NewContainer wires the application over the runtime connections.
func (r *Runtime) NewContainer() (*httpContainer.Container, error) {
	return httpContainer.NewContainer(r.DB, r.Redis, r.Config, r.Logger)
}

func (r *Runtime) Close() {
	if err := r.Redis.Close(); err != nil {
		r.Logger.Warnw("failed to close redis client", "error", err)
	}
	if err := database.Close(); err != nil {
		r.Logger.Warnw("failed to close database", "error", err)
	}
}

// ShutdownTimeout returns the configured grace period, 30s by default.
func (r *Runtime) ShutdownTimeout() time.Duration {
	if r.Config.Server.ShutdownTimeout > 0 {
		return time.Duration(r.Config.Server.ShutdownTimeout) * time.Second
	}
	return 30 * time.Second
}

// WaitForSignal blocks until SIGINT or SIGTERM.
func WaitForSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	return <-quit
}

func MapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod":
		return "release"
	case "development", "dev":
		return "debug"
	case "test", "testing":
		return "test"
	case "debug":
		return "debug"
	case "release":
		return "release"
	default:
		return "debug"
	}
}
