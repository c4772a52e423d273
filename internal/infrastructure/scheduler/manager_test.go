package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/infrastructure/cache"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/testutil"
)

type mutableSettings struct {
	mu       sync.Mutex
	settings autopayment.Settings
}

func (s *mutableSettings) Load(context.Context) (autopayment.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *mutableSettings) set(settings autopayment.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

type scriptedJob struct {
	errs  []error
	calls int
}

func (j *scriptedJob) Execute(context.Context) (*common.Result, error) {
	j.calls++
	if len(j.errs) > 0 {
		err := j.errs[0]
		j.errs = j.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return common.Succeeded("done", 1, 2), nil
}

func newTestManager(t *testing.T, locker JobLocker) (*SchedulerManager, *mutableSettings) {
	t.Helper()
	settings := &mutableSettings{settings: autopayment.DefaultSettings()}
	m, err := NewSchedulerManager(settings, locker, 3, logger.Discard())
	require.NoError(t, err)
	m.backOff = func() *backoff.ExponentialBackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Millisecond
		b.MaxInterval = 5 * time.Millisecond
		return b
	}
	t.Cleanup(func() { _ = m.Stop() })
	return m, settings
}

func TestRunJobRetriesTransientFailures(t *testing.T) {
	m, _ := newTestManager(t, nil)
	job := &scriptedJob{errs: []error{errors.New("redis timeout"), errors.New("redis timeout")}}

	m.runJob(JobCollector, job)
	assert.Equal(t, 3, job.calls)
}

func TestRunJobGivesUpAfterMaxRetries(t *testing.T) {
	m, _ := newTestManager(t, nil)
	boom := errors.New("db down")
	job := &scriptedJob{errs: []error{boom, boom, boom, boom}}

	m.runJob(JobSweeper, job)
	assert.Equal(t, 3, job.calls)
}

func TestRunJobDoesNotRetryValidationErrors(t *testing.T) {
	m, _ := newTestManager(t, nil)
	job := &scriptedJob{errs: []error{apperrors.NewValidationError("bad settings")}}

	m.runJob(JobCollector, job)
	assert.Equal(t, 1, job.calls)
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	lock := cache.NewJobLock(client)
	m, _ := newTestManager(t, lock)

	release, ok, err := lock.TryAcquire(context.Background(), JobCollector, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	job := &scriptedJob{}
	m.runJob(JobCollector, job)
	assert.Equal(t, 0, job.calls)

	release(context.Background())
	m.runJob(JobCollector, job)
	assert.Equal(t, 1, job.calls)

	// The lock is released after the run.
	_, ok, err = lock.TryAcquire(context.Background(), JobCollector, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegisterAndReload(t *testing.T) {
	m, settings := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.RegisterAutoPaymentJobs(ctx, &scriptedJob{}, &scriptedJob{}))
	require.Len(t, m.Jobs(), 3)
	assert.Equal(t, "5 0 * * *", m.jobs[JobCollector].cron)
	assert.Equal(t, "55 23 * * *", m.jobs[JobSweeper].cron)

	m.Start()

	updated := autopayment.DefaultSettings()
	updated.StartHour = 1
	updated.StartMinute = 30
	settings.set(updated)
	require.NoError(t, m.Reload(ctx))

	assert.Equal(t, "30 1 * * *", m.jobs[JobCollector].cron)
	assert.Equal(t, "55 23 * * *", m.jobs[JobSweeper].cron)
	assert.Len(t, m.Jobs(), 3)

	require.Eventually(t, func() bool {
		job := m.jobByName(JobCollector)
		if job == nil {
			return false
		}
		next, err := job.NextRun()
		return err == nil && next.UTC().Hour() == 1 && next.UTC().Minute() == 30
	}, 2*time.Second, 10*time.Millisecond)
}

func (m *SchedulerManager) jobByName(name string) gocron.Job {
	for _, job := range m.scheduler.Jobs() {
		if job.Name() == name {
			return job
		}
	}
	return nil
}
