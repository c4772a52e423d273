package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc/pool"

	"github.com/orris-inc/autopay/internal/shared/biztime"
	sharedConfig "github.com/orris-inc/autopay/internal/shared/config"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// HandlerFunc runs one task. A returned error re-runs the task later,
// unless it is wrapped with Permanent.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the task goes straight to the dead list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

const promoteBatch = 100

// Worker consumes the queue with a bounded pool of goroutines.
type Worker struct {
	queue    *Queue
	handlers map[string]HandlerFunc
	mu       sync.RWMutex

	concurrency  int
	taskTimeout  time.Duration
	maxRetries   int
	pollInterval time.Duration
	lease        time.Duration
	retryBase    time.Duration
	retryMax     time.Duration

	clock  biztime.Clock
	logger logger.Interface
}

func NewWorker(queue *Queue, cfg sharedConfig.WorkerConfig, clock biztime.Clock, logger logger.Interface) *Worker {
	w := &Worker{
		queue:        queue,
		handlers:     make(map[string]HandlerFunc),
		concurrency:  max(cfg.Concurrency, 1),
		taskTimeout:  time.Duration(cfg.TaskTimeoutSeconds) * time.Second,
		maxRetries:   max(cfg.TaskMaxRetries, 0),
		pollInterval: time.Duration(cfg.PollIntervalMillis) * time.Millisecond,
		lease:        time.Duration(cfg.StuckAfterSeconds) * time.Second,
		retryBase:    time.Duration(cfg.RetryBaseSeconds) * time.Second,
		retryMax:     time.Duration(cfg.RetryMaxSeconds) * time.Second,
		clock:        clock,
		logger:       logger,
	}
	if w.taskTimeout <= 0 {
		w.taskTimeout = 2 * time.Minute
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	// A lease shorter than the task timeout would hand a live task to a second worker.
	if w.lease < 2*w.taskTimeout {
		w.lease = 2 * w.taskTimeout
	}
	if w.retryBase <= 0 {
		w.retryBase = 5 * time.Second
	}
	if w.retryMax < w.retryBase {
		w.retryMax = w.retryBase
	}
	return w
}

// Register binds a handler to a task type.
func (w *Worker) Register(taskType string, handler HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = handler
}

func (w *Worker) handler(taskType string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[taskType]
	return h, ok
}

// Run consumes tasks until ctx is cancelled, then waits for running tasks.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("task worker started", "concurrency", w.concurrency, "task_timeout", w.taskTimeout)

	p := pool.New().WithMaxGoroutines(w.concurrency)
	defer func() {
		p.Wait()
		w.logger.Infow("task worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		w.maintain(ctx)

		task, member, err := w.queue.Claim(ctx, w.clock.Now().Add(w.lease))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Errorw("failed to claim task", "error", err)
		}
		if task == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollInterval):
			}
			continue
		}

		// Running tasks finish during shutdown; only their own timeout stops them.
		taskCtx := context.WithoutCancel(ctx)
		p.Go(func() {
			w.execute(taskCtx, task, member)
		})
	}
}

// ProcessNext promotes due tasks and runs at most one ready task inline.
// It reports whether a task was run.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	w.maintain(ctx)
	task, member, err := w.queue.Claim(ctx, w.clock.Now().Add(w.lease))
	if err != nil || task == nil {
		return false, err
	}
	w.execute(ctx, task, member)
	return true, nil
}

func (w *Worker) maintain(ctx context.Context) {
	now := w.clock.Now()
	if n, err := w.queue.PromoteDue(ctx, now, promoteBatch); err != nil {
		w.logger.Errorw("failed to promote delayed tasks", "error", err)
	} else if n > 0 {
		w.logger.Debugw("promoted delayed tasks", "count", n)
	}
	if n, err := w.queue.RecoverStuck(ctx, now, promoteBatch); err != nil {
		w.logger.Errorw("failed to recover stuck tasks", "error", err)
	} else if n > 0 {
		w.logger.Warnw("recovered stuck tasks", "count", n)
	}
}

func (w *Worker) execute(ctx context.Context, task *Task, member string) {
	log := w.logger.With("task_id", task.ID, "task_type", task.Type, "retries", task.Retries)
	started := time.Now()

	err := w.runHandler(ctx, task)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, member); ackErr != nil {
			log.Errorw("failed to ack task", "error", ackErr)
		}
		log.Debugw("task completed", "duration", time.Since(started))
		return
	}

	task.LastError = err.Error()
	if isPermanent(err) || task.Retries >= w.maxRetries {
		log.Errorw("task failed permanently, moved to dead list", "error", err, "duration", time.Since(started))
		if buryErr := w.queue.Bury(ctx, member, task); buryErr != nil {
			log.Errorw("failed to bury task", "error", buryErr)
		}
		return
	}

	delay := w.retryDelay(task.Retries)
	task.Retries++
	log.Warnw("task failed, will retry", "error", err, "retry_in", delay)
	if rsErr := w.queue.Reschedule(ctx, member, task, w.clock.Now().Add(delay)); rsErr != nil {
		log.Errorw("failed to reschedule task", "error", rsErr)
	}
}

func (w *Worker) runHandler(ctx context.Context, task *Task) (err error) {
	handler, ok := w.handler(task.Type)
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for task type %q", task.Type))
	}

	ctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("task handler panicked", "task_type", task.Type, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler(ctx, task.Payload)
}

// retryDelay doubles from retryBase per earlier retry, capped at retryMax.
func (w *Worker) retryDelay(retries int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval: w.retryBase,
		Multiplier:      2,
		MaxInterval:     w.retryMax,
	}
	b.Reset()
	delay := b.NextBackOff()
	for range retries {
		delay = b.NextBackOff()
	}
	return delay
}
