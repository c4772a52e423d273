package taskqueue

import (
	"context"
	"time"

	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// Dispatcher enqueues the engine's tasks on the Redis queue.
type Dispatcher struct {
	queue *Queue
	clock biztime.Clock
}

var _ tasks.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(queue *Queue, clock biztime.Clock) *Dispatcher {
	return &Dispatcher{queue: queue, clock: clock}
}

func (d *Dispatcher) DispatchProcessSubscription(ctx context.Context, subscriptionID uint) error {
	_, err := d.queue.Enqueue(ctx, tasks.TypeProcessSubscription,
		tasks.ProcessSubscriptionPayload{SubscriptionID: subscriptionID}, 0, d.clock.Now())
	return err
}

func (d *Dispatcher) DispatchRetryPayment(ctx context.Context, paymentID uint, attempt int, delay time.Duration) error {
	_, err := d.queue.Enqueue(ctx, tasks.TypeRetryPayment,
		tasks.RetryPaymentPayload{PaymentID: paymentID, Attempt: attempt}, delay, d.clock.Now())
	return err
}

func (d *Dispatcher) DispatchRefundPayment(ctx context.Context, payload tasks.RefundPaymentPayload) error {
	_, err := d.queue.Enqueue(ctx, tasks.TypeRefundPayment, payload, 0, d.clock.Now())
	return err
}
