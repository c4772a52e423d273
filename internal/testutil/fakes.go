package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// RecordingNotifier keeps every notification it is asked to send.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
	Err  error
}

func (n *RecordingNotifier) Notify(_ context.Context, msg notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.Err
}

func (n *RecordingNotifier) Sent() []notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Notification(nil), n.sent...)
}

// OfKind returns the notifications of one kind.
func (n *RecordingNotifier) OfKind(kind notification.Kind) []notification.Notification {
	var out []notification.Notification
	for _, msg := range n.Sent() {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

// RetryCall is one recorded DispatchRetryPayment call.
type RetryCall struct {
	PaymentID uint
	Attempt   int
	Delay     time.Duration
}

// RecordingDispatcher records enqueued tasks instead of running them.
type RecordingDispatcher struct {
	mu            sync.Mutex
	Subscriptions []uint
	Retries       []RetryCall
	Refunds       []tasks.RefundPaymentPayload
	Err           error
}

func (d *RecordingDispatcher) DispatchProcessSubscription(_ context.Context, subscriptionID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Subscriptions = append(d.Subscriptions, subscriptionID)
	return nil
}

func (d *RecordingDispatcher) DispatchRetryPayment(_ context.Context, paymentID uint, attempt int, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Retries = append(d.Retries, RetryCall{PaymentID: paymentID, Attempt: attempt, Delay: delay})
	return nil
}

func (d *RecordingDispatcher) DispatchRefundPayment(_ context.Context, payload tasks.RefundPaymentPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Refunds = append(d.Refunds, payload)
	return nil
}

// PopRetry removes and returns the oldest recorded retry.
func (d *RecordingDispatcher) PopRetry() (RetryCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Retries) == 0 {
		return RetryCall{}, false
	}
	call := d.Retries[0]
	d.Retries = d.Retries[1:]
	return call, true
}

// MemoryInFlight is an in-process dated set.
type MemoryInFlight struct {
	mu   sync.Mutex
	sets map[string]map[uint]struct{}
}

func NewMemoryInFlight() *MemoryInFlight {
	return &MemoryInFlight{sets: make(map[string]map[uint]struct{})}
}

func (m *MemoryInFlight) Add(_ context.Context, day time.Time, ids []uint, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := biztime.DateKey(day)
	if m.sets[key] == nil {
		m.sets[key] = make(map[uint]struct{})
	}
	for _, id := range ids {
		m.sets[key][id] = struct{}{}
	}
	return nil
}

func (m *MemoryInFlight) Remove(_ context.Context, day time.Time, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[biztime.DateKey(day)], id)
	return nil
}

func (m *MemoryInFlight) Members(_ context.Context, day time.Time) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint, 0, len(m.sets[biztime.DateKey(day)]))
	for id := range m.sets[biztime.DateKey(day)] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
