// Package ratelimit throttles the public user and subscription API with
// a sliding window kept in Redis, shared by every server instance.
package ratelimit

import (
	"context"
	"time"
)

// Limits caps requests per key. A zero field disables that window.
type Limits struct {
	PerMinute int
	PerHour   int
}

func (l Limits) Enabled() bool {
	return l.PerMinute > 0 || l.PerHour > 0
}

// Decision reports whether a request may proceed and, when it may not,
// how long the caller should wait.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limits Limits) (Decision, error)
	Reset(ctx context.Context, key string) error
}
