package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// jobLockKeyPrefix is the prefix for scheduler job locks.
// Format: autopay:job_lock:{job}
const jobLockKeyPrefix = "autopay:job_lock:"

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock keeps a scheduled job from running on two instances at once.
type JobLock struct {
	client *redis.Client
}

func NewJobLock(client *redis.Client) *JobLock {
	return &JobLock{client: client}
}

// TryAcquire takes the lock for ttl. It returns a release func when acquired.
func (l *JobLock) TryAcquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context), bool, error) {
	key := jobLockKeyPrefix + job
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
