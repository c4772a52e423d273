package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/infrastructure/config"
	"github.com/orris-inc/autopay/internal/infrastructure/pubsub"
	"github.com/orris-inc/autopay/internal/infrastructure/scheduler"
	"github.com/orris-inc/autopay/internal/infrastructure/taskqueue"
	"github.com/orris-inc/autopay/internal/interfaces/http/middleware"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/goroutine"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases,
// handlers and background services, and wires them together. The server
// command serves HTTP from it; the worker command only runs its background
// services.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client
	clock  biztime.Clock

	repos *repositories
	svcs  *services
	ucs   *allUseCases
	hdlrs *allHandlers

	adminTokenMiddleware *middleware.AdminTokenMiddleware
	rateLimitMiddleware  *middleware.RateLimiter

	// Background services
	worker           *taskqueue.Worker
	schedulerManager *scheduler.SchedulerManager
	backgroundCancel context.CancelFunc
	workerDone       chan struct{}
	backgroundMu     sync.Mutex
}

// NewContainer creates a new Container with all dependencies wired together.
func NewContainer(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
		redis:  redisClient,
		clock:  biztime.SystemClock{},
	}

	c.initRepositories()
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	c.initUseCases()
	c.initHandlers()
	if err := c.initBackground(); err != nil {
		return nil, fmt.Errorf("failed to initialize background services: %w", err)
	}

	return c, nil
}

func (c *Container) initBackground() error {
	c.worker = taskqueue.NewWorker(c.svcs.queue, c.cfg.Worker, c.clock, c.log.Named("worker"))
	taskqueue.RegisterHandlers(c.worker, c.ucs.processSubscription, c.ucs.retryPayment, c.ucs.refundPayment, c.log.Named("tasks"))

	schedulerManager, err := scheduler.NewSchedulerManager(
		c.svcs.settingsStore,
		c.svcs.jobLock,
		c.cfg.AutoPayment.JobMaxRetries,
		c.log.Named("scheduler"),
	)
	if err != nil {
		return err
	}
	c.schedulerManager = schedulerManager
	return nil
}

// Engine returns the gin engine with routes set up by SetupRoutes.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// StartBackground starts the task worker and, when withScheduler is set, the
// collector and sweeper cron jobs.
func (c *Container) StartBackground(ctx context.Context, withScheduler bool) error {
	c.backgroundMu.Lock()
	defer c.backgroundMu.Unlock()

	if c.backgroundCancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if withScheduler {
		if err := c.schedulerManager.RegisterAutoPaymentJobs(ctx, c.ucs.collectDue, c.ucs.sweepWaiting); err != nil {
			cancel()
			return fmt.Errorf("failed to register auto payment jobs: %w", err)
		}
		c.schedulerManager.Start()
		c.watchSettings(workerCtx)
	}

	c.backgroundCancel = cancel
	c.workerDone = make(chan struct{})
	done := c.workerDone
	goroutine.SafeGo(c.log, "task-worker", func() {
		defer close(done)
		if err := c.worker.Run(workerCtx); err != nil {
			c.log.Errorw("task worker exited with error", "error", err)
		}
	})
	return nil
}

// watchSettings reschedules the cron jobs as soon as another instance
// announces new settings.
func (c *Container) watchSettings(ctx context.Context) {
	goroutine.SafeGo(c.log, "settings-watcher", func() {
		err := c.svcs.settingsBus.SubscribeSettingsChanged(ctx, func(evt pubsub.SettingsChangedEvent) {
			c.log.Infow("auto payment settings changed, rescheduling",
				"collector_cron", evt.CollectorCron,
				"sweeper_cron", evt.SweeperCron,
			)
			if err := c.schedulerManager.Reload(ctx); err != nil {
				c.log.Errorw("failed to reload scheduler after settings change", "error", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			c.log.Errorw("settings watcher stopped", "error", err)
		}
	})
}

// Shutdown stops the scheduler, then the worker, waiting for running tasks
// until ctx expires.
func (c *Container) Shutdown(ctx context.Context) error {
	c.backgroundMu.Lock()
	defer c.backgroundMu.Unlock()

	if err := c.schedulerManager.Stop(); err != nil {
		c.log.Errorw("failed to stop scheduler", "error", err)
	}

	if c.backgroundCancel == nil {
		return nil
	}
	c.backgroundCancel()
	c.backgroundCancel = nil

	select {
	case <-c.workerDone:
		return nil
	case <-ctx.Done():
		c.log.Warnw("task worker did not stop before shutdown deadline")
		return ctx.Err()
	}
}
