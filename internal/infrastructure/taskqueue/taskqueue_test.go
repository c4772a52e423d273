package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/common"
	paymentUsecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	sharedConfig "github.com/orris-inc/autopay/internal/shared/config"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/testutil"
)

type harness struct {
	queue      *Queue
	worker     *Worker
	dispatcher *Dispatcher
	clock      *biztime.ManualClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, _ := testutil.NewRedis(t)
	clock := biztime.NewManualClock(time.Date(2026, 4, 10, 0, 5, 0, 0, time.UTC))
	queue := NewQueue(client, "test:")
	worker := NewWorker(queue, sharedConfig.WorkerConfig{
		Concurrency:        2,
		TaskTimeoutSeconds: 5,
		TaskMaxRetries:     2,
		PollIntervalMillis: 10,
		StuckAfterSeconds:  60,
		RetryBaseSeconds:   1,
		RetryMaxSeconds:    10,
	}, clock, logger.Discard())
	return &harness{queue: queue, worker: worker, dispatcher: NewDispatcher(queue, clock), clock: clock}
}

func (h *harness) stats(t *testing.T) Stats {
	t.Helper()
	s, err := h.queue.Stats(context.Background())
	require.NoError(t, err)
	return s
}

func TestProcessesReadyTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var got tasks.ProcessSubscriptionPayload
	h.worker.Register(tasks.TypeProcessSubscription, func(_ context.Context, raw json.RawMessage) error {
		return json.Unmarshal(raw, &got)
	})

	require.NoError(t, h.dispatcher.DispatchProcessSubscription(ctx, 42))
	ran, err := h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, uint(42), got.SubscriptionID)
	assert.Equal(t, Stats{}, h.stats(t))

	ran, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestDelayedTaskWaitsForRunAt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var attempts []int
	h.worker.Register(tasks.TypeRetryPayment, func(_ context.Context, raw json.RawMessage) error {
		var p tasks.RetryPaymentPayload
		require.NoError(t, json.Unmarshal(raw, &p))
		attempts = append(attempts, p.Attempt)
		return nil
	})

	require.NoError(t, h.dispatcher.DispatchRetryPayment(ctx, 7, 2, time.Minute))
	assert.Equal(t, int64(1), h.stats(t).Delayed)

	ran, err := h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	h.clock.Advance(time.Minute)
	ran, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []int{2}, attempts)
}

func TestFailingTaskIsRetriedThenBuried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var calls int
	h.worker.Register("flaky", func(context.Context, json.RawMessage) error {
		calls++
		return errors.New("database is down")
	})
	_, err := h.queue.Enqueue(ctx, "flaky", map[string]int{"n": 1}, 0, h.clock.Now())
	require.NoError(t, err)

	_, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.stats(t).Delayed)

	// 1s, then 2s
	h.clock.Advance(time.Second)
	_, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Second)
	_, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, Stats{Dead: 1}, h.stats(t))

	dead, err := h.queue.DeadTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Retries)
	assert.Equal(t, "database is down", dead[0].LastError)
}

func TestPermanentFailuresAreBuried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.worker.Register("bad", func(context.Context, json.RawMessage) error {
		return Permanent(errors.New("cannot ever work"))
	})
	_, err := h.queue.Enqueue(ctx, "bad", nil, 0, h.clock.Now())
	require.NoError(t, err)
	_, err = h.queue.Enqueue(ctx, "unregistered", nil, 0, h.clock.Now())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ran, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		require.True(t, ran)
	}
	assert.Equal(t, Stats{Dead: 2}, h.stats(t))
}

func TestPanickingHandlerIsRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.worker.Register("boom", func(context.Context, json.RawMessage) error {
		panic("nil map")
	})
	_, err := h.queue.Enqueue(ctx, "boom", nil, 0, h.clock.Now())
	require.NoError(t, err)

	ran, err := h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, Stats{Delayed: 1}, h.stats(t))
}

func TestStuckTaskIsRecovered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var calls int
	h.worker.Register(tasks.TypeProcessSubscription, func(context.Context, json.RawMessage) error {
		calls++
		return nil
	})
	require.NoError(t, h.dispatcher.DispatchProcessSubscription(ctx, 1))

	// A worker claims the task and dies without acking.
	task, _, err := h.queue.Claim(ctx, h.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, int64(1), h.stats(t).Processing)

	ran, err := h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	h.clock.Advance(2 * time.Minute)
	ran, err = h.worker.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Stats{}, h.stats(t))
}

func TestRunDrainsQueueAndStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	var handled atomic.Int32
	h.worker.Register(tasks.TypeProcessSubscription, func(context.Context, json.RawMessage) error {
		handled.Add(1)
		return nil
	})
	for id := uint(1); id <= 5; id++ {
		require.NoError(t, h.dispatcher.DispatchProcessSubscription(ctx, id))
	}

	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()

	require.Eventually(t, func() bool { return handled.Load() == 5 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, Stats{}, h.stats(t))
}

type stubProcessor struct{ ids []uint }

func (s *stubProcessor) Execute(_ context.Context, id uint) (*common.Result, error) {
	s.ids = append(s.ids, id)
	return common.Skipped(common.ReasonPaymentExists, id), nil
}

type stubRetrier struct{ err error }

func (s *stubRetrier) Execute(context.Context, uint, int) (*common.Result, error) {
	return nil, s.err
}

type stubRefunder struct {
	cmds []paymentUsecases.RefundPaymentCommand
	err  error
}

func (s *stubRefunder) Execute(_ context.Context, cmd paymentUsecases.RefundPaymentCommand) (*common.Result, error) {
	s.cmds = append(s.cmds, cmd)
	return common.Succeeded("refunded", cmd.PaymentID), s.err
}

func TestRegisteredHandlers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	processor := &stubProcessor{}
	retrier := &stubRetrier{err: apperrors.NewNotFoundError("payment not found")}
	refunder := &stubRefunder{err: apperrors.NewConflictError("refund already exists")}
	RegisterHandlers(h.worker, processor, retrier, refunder, logger.Discard())

	require.NoError(t, h.dispatcher.DispatchProcessSubscription(ctx, 9))
	require.NoError(t, h.dispatcher.DispatchRetryPayment(ctx, 3, 1, 0))
	require.NoError(t, h.dispatcher.DispatchRefundPayment(ctx, tasks.RefundPaymentPayload{
		PaymentID: 5, Amount: "33.33", Reason: "cancel",
	}))
	require.NoError(t, h.dispatcher.DispatchRefundPayment(ctx, tasks.RefundPaymentPayload{PaymentID: 6, Amount: "abc"}))

	for i := 0; i < 4; i++ {
		ran, err := h.worker.ProcessNext(ctx)
		require.NoError(t, err)
		require.True(t, ran)
	}

	assert.Equal(t, []uint{9}, processor.ids)
	require.Len(t, refunder.cmds, 1)
	assert.Equal(t, uint(5), refunder.cmds[0].PaymentID)
	require.NotNil(t, refunder.cmds[0].Amount)
	assert.True(t, refunder.cmds[0].Amount.Equal(decimal.RequireFromString("33.33")))

	// Not-found retry and malformed refund amount are dead; the refund conflict is done.
	assert.Equal(t, Stats{Dead: 2}, h.stats(t))
}
