// Package scheduler runs the daily auto-payment jobs using gocron v2.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const (
	JobCollector       = "auto-payment-collector"
	JobSweeper         = "auto-payment-sweeper"
	jobSettingsRefresh = "auto-payment-settings-refresh"

	settingsRefreshInterval = 5 * time.Minute
	defaultJobTimeout       = 30 * time.Minute
)

// BatchJob is one scheduled use case run.
type BatchJob interface {
	Execute(ctx context.Context) (*common.Result, error)
}

// JobLocker keeps a job from running on two instances at once.
type JobLocker interface {
	TryAcquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context), bool, error)
}

type registeredJob struct {
	id   uuid.UUID
	cron string
	run  BatchJob
}

// SchedulerManager owns the gocron scheduler. All crontabs are UTC and come
// from the runtime settings; Reload picks up edits.
type SchedulerManager struct {
	scheduler  gocron.Scheduler
	settings   autopayment.SettingsProvider
	locker     JobLocker
	maxRetries int
	jobTimeout time.Duration
	backOff    func() *backoff.ExponentialBackOff
	logger     logger.Interface

	jobsMu sync.Mutex
	jobs   map[string]*registeredJob

	startedMu sync.Mutex
	started   bool
}

// NewSchedulerManager creates a new SchedulerManager instance.
// locker may be nil for a single-instance deployment.
func NewSchedulerManager(settings autopayment.SettingsProvider, locker JobLocker, maxRetries int, log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &SchedulerManager{
		scheduler:  scheduler,
		settings:   settings,
		locker:     locker,
		maxRetries: maxRetries,
		jobTimeout: defaultJobTimeout,
		backOff:    backoff.NewExponentialBackOff,
		logger:     log,
		jobs:       make(map[string]*registeredJob),
	}, nil
}

// RegisterAutoPaymentJobs registers the collector at start_hour:start_minute,
// the sweeper at end_hour:end_minute and a periodic settings refresh.
func (m *SchedulerManager) RegisterAutoPaymentJobs(ctx context.Context, collector, sweeper BatchJob) error {
	settings, err := m.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load auto payment settings: %w", err)
	}

	if err := m.registerCron(JobCollector, settings.CollectorCron(), collector, "auto-payment", "collector"); err != nil {
		return err
	}
	if err := m.registerCron(JobSweeper, settings.SweeperCron(), sweeper, "auto-payment", "sweeper"); err != nil {
		return err
	}

	_, err = m.scheduler.NewJob(
		gocron.DurationJob(settingsRefreshInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := m.Reload(ctx); err != nil {
				m.logger.Errorw("failed to reload auto payment schedule", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobSettingsRefresh),
	)
	return err
}

func (m *SchedulerManager) registerCron(name, cron string, run BatchJob, tags ...string) error {
	job, err := m.scheduler.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(m.runJob, name, run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
		gocron.WithTags(tags...),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	m.jobsMu.Lock()
	m.jobs[name] = &registeredJob{id: job.ID(), cron: cron, run: run}
	m.jobsMu.Unlock()

	m.logger.Infow("scheduled job registered", "job", name, "cron", cron)
	return nil
}

// Reload re-reads the settings and reschedules jobs whose crontab changed.
func (m *SchedulerManager) Reload(ctx context.Context) error {
	settings, err := m.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load auto payment settings: %w", err)
	}
	wanted := map[string]string{
		JobCollector: settings.CollectorCron(),
		JobSweeper:   settings.SweeperCron(),
	}

	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	for name, cron := range wanted {
		job, ok := m.jobs[name]
		if !ok || job.cron == cron {
			continue
		}
		updated, err := m.scheduler.Update(job.id,
			gocron.CronJob(cron, false),
			gocron.NewTask(m.runJob, name, job.run),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithName(name),
		)
		if err != nil {
			return fmt.Errorf("failed to reschedule %s: %w", name, err)
		}
		m.logger.Infow("scheduled job rescheduled", "job", name, "from", job.cron, "to", cron)
		job.id = updated.ID()
		job.cron = cron
	}
	return nil
}

// runJob holds the cluster lock and retries the job with exponential
// backoff. Collector and sweeper are idempotent, so a rerun is safe.
func (m *SchedulerManager) runJob(name string, job BatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), m.jobTimeout)
	defer cancel()

	if m.locker != nil {
		release, acquired, err := m.locker.TryAcquire(ctx, name, m.jobTimeout)
		if err != nil {
			m.logger.Errorw("failed to acquire job lock", "job", name, "error", err)
			return
		}
		if !acquired {
			m.logger.Infow("job already running on another instance", "job", name)
			return
		}
		defer release(context.WithoutCancel(ctx))
	}

	started := time.Now()
	attempt := 0
	result, err := backoff.Retry(ctx, func() (*common.Result, error) {
		attempt++
		result, err := job.Execute(ctx)
		if err != nil && errors.IsValidationError(err) {
			return nil, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(m.backOff()),
		backoff.WithMaxTries(uint(m.maxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.logger.Warnw("scheduled job failed, retrying", "job", name, "attempt", attempt, "next_in", next, "error", err)
		}),
	)
	if err != nil {
		m.logger.Errorw("scheduled job failed", "job", name, "attempts", attempt, "error", err, "duration", time.Since(started))
		return
	}

	if result == nil {
		result = &common.Result{}
	}
	m.logger.Infow("scheduled job finished",
		"job", name,
		"message", result.Message,
		"count", len(result.IDs),
		"duration", time.Since(started),
	)
}

// Start starts the scheduler. Calling Start twice is a no-op.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// Jobs returns all registered jobs.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
