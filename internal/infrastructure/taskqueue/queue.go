// Package taskqueue is a Redis-backed durable task broker.
//
// Layout (prefix from worker.key_prefix):
//
//	{prefix}tasks:ready       LIST  tasks ready to run
//	{prefix}tasks:delayed     ZSET  score = run-at unix millis
//	{prefix}tasks:processing  ZSET  score = lease deadline unix millis
//	{prefix}tasks:dead        LIST  tasks that exhausted their retries
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task is one unit of work. Retries counts broker-level re-runs after
// handler errors, not business attempts.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Retries    int             `json:"retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Queue holds the Redis keys and the atomic moves between them.
type Queue struct {
	client     *redis.Client
	ready      string
	delayed    string
	processing string
	dead       string
}

// promoteScript moves due members of a sorted set to the ready list.
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	redis.call("ZREM", KEYS[1], member)
	redis.call("RPUSH", KEYS[2], member)
end
return #due
`)

// claimScript pops the next ready task and leases it until ARGV[1].
var claimScript = redis.NewScript(`
local member = redis.call("LPOP", KEYS[1])
if not member then
	return false
end
redis.call("ZADD", KEYS[2], ARGV[1], member)
return member
`)

// rescheduleScript releases a lease and parks the updated task in the delayed set.
var rescheduleScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[2])
return 1
`)

// buryScript releases a lease and appends the task to the dead list.
var buryScript = redis.NewScript(`
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("RPUSH", KEYS[2], ARGV[2])
return 1
`)

func NewQueue(client *redis.Client, prefix string) *Queue {
	return &Queue{
		client:     client,
		ready:      prefix + "tasks:ready",
		delayed:    prefix + "tasks:delayed",
		processing: prefix + "tasks:processing",
		dead:       prefix + "tasks:dead",
	}
}

// Enqueue stores a new task, ready now or after delay.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, delay time.Duration, now time.Time) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := &Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Payload:    raw,
		EnqueuedAt: now.UTC(),
	}
	member, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	if delay <= 0 {
		err = q.client.RPush(ctx, q.ready, member).Err()
	} else {
		err = q.client.ZAdd(ctx, q.delayed, redis.Z{
			Score:  float64(now.Add(delay).UnixMilli()),
			Member: member,
		}).Err()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task %s: %w", taskType, err)
	}
	return task, nil
}

// PromoteDue moves delayed tasks whose run-at has passed to the ready list.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.ready}, now.UnixMilli(), limit).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to promote delayed tasks: %w", err)
	}
	return n, nil
}

// RecoverStuck requeues tasks whose lease expired, e.g. after a worker crash.
func (q *Queue) RecoverStuck(ctx context.Context, now time.Time, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, q.client, []string{q.processing, q.ready}, now.UnixMilli(), limit).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to recover stuck tasks: %w", err)
	}
	return n, nil
}

// Claim leases the next ready task. It returns nil when the list is empty.
// The returned string is the raw member needed to ack the lease.
func (q *Queue) Claim(ctx context.Context, leaseUntil time.Time) (*Task, string, error) {
	member, err := claimScript.Run(ctx, q.client, []string{q.ready, q.processing}, leaseUntil.UnixMilli()).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to claim task: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(member), &task); err != nil {
		// Unreadable member: bury it as-is so it stops cycling.
		_ = buryScript.Run(ctx, q.client, []string{q.processing, q.dead}, member, member).Err()
		return nil, "", fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, member, nil
}

// Ack drops a finished task's lease.
func (q *Queue) Ack(ctx context.Context, member string) error {
	if err := q.client.ZRem(ctx, q.processing, member).Err(); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Reschedule releases the lease and re-adds task to run at runAt.
func (q *Queue) Reschedule(ctx context.Context, member string, task *Task, runAt time.Time) error {
	updated, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := rescheduleScript.Run(ctx, q.client, []string{q.processing, q.delayed}, member, updated, runAt.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("failed to reschedule task: %w", err)
	}
	return nil
}

// Bury releases the lease and moves task to the dead list.
func (q *Queue) Bury(ctx context.Context, member string, task *Task) error {
	updated, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := buryScript.Run(ctx, q.client, []string{q.processing, q.dead}, member, updated).Err(); err != nil {
		return fmt.Errorf("failed to bury task: %w", err)
	}
	return nil
}

// Stats reports the size of each key.
type Stats struct {
	Ready      int64 `json:"ready"`
	Delayed    int64 `json:"delayed"`
	Processing int64 `json:"processing"`
	Dead       int64 `json:"dead"`
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	delayed := pipe.ZCard(ctx, q.delayed)
	processing := pipe.ZCard(ctx, q.processing)
	dead := pipe.LLen(ctx, q.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return Stats{
		Ready:      ready.Val(),
		Delayed:    delayed.Val(),
		Processing: processing.Val(),
		Dead:       dead.Val(),
	}, nil
}

// DeadTasks returns up to limit buried tasks.
func (q *Queue) DeadTasks(ctx context.Context, limit int64) ([]Task, error) {
	raw, err := q.client.LRange(ctx, q.dead, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead tasks: %w", err)
	}
	out := make([]Task, 0, len(raw))
	for _, member := range raw {
		var task Task
		if json.Unmarshal([]byte(member), &task) == nil {
			out = append(out, task)
		}
	}
	return out, nil
}
