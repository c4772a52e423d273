package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// RedisRateLimiter records each request as a member of a sorted set
// scored by its timestamp, one set per key and window.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	clock  biztime.Clock
}

func NewRedisRateLimiter(client *redis.Client, prefix string, clock biztime.Clock) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: prefix + "ratelimit:",
		clock:  clock,
	}
}

// Allow counts the request against every enabled window. A denied request
// is not recorded, so a client that backs off regains capacity.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limits Limits) (Decision, error) {
	now := l.clock.Now()

	windows := []struct {
		duration time.Duration
		limit    int
	}{
		{time.Minute, limits.PerMinute},
		{time.Hour, limits.PerHour},
	}

	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	var admitted []string

	for _, window := range windows {
		if window.limit <= 0 {
			continue
		}

		redisKey := l.key(key, window.duration)
		decision, err := l.checkWindow(ctx, redisKey, window.duration, window.limit, now, member)
		if err != nil {
			return Decision{}, err
		}
		if !decision.Allowed {
			l.rollback(ctx, admitted, member)
			return decision, nil
		}
		admitted = append(admitted, redisKey)
	}

	return Decision{Allowed: true}, nil
}

func (l *RedisRateLimiter) checkWindow(
	ctx context.Context,
	redisKey string,
	window time.Duration,
	limit int,
	now time.Time,
	member string,
) (Decision, error) {
	windowStart := now.Add(-window).UnixNano()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("read rate window: %w", err)
	}

	if count.Val() >= int64(limit) {
		retryAfter := window
		if first := oldest.Val(); len(first) > 0 {
			expires := time.Unix(0, int64(first[0].Score)).Add(window)
			retryAfter = expires.Sub(now)
		}
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, redisKey, window+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("record request: %w", err)
	}

	return Decision{Allowed: true}, nil
}

func (l *RedisRateLimiter) rollback(ctx context.Context, keys []string, member string) {
	for _, k := range keys {
		l.client.ZRem(ctx, k, member)
	}
}

// Reset drops every window recorded for key.
func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	pattern := fmt.Sprintf("%s%s:*", l.prefix, key)

	iter := l.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	return nil
}

func (l *RedisRateLimiter) key(identifier string, window time.Duration) string {
	return fmt.Sprintf("%s%s:%s", l.prefix, identifier, window.String())
}
