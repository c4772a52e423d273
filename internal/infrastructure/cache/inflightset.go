package cache

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// inFlightKeyPrefix is the prefix of the dated in-flight sets.
// Format: auto_payment:subscriptions:{YYYY-MM-DD}
const inFlightKeyPrefix = "auto_payment:subscriptions:"

// InFlightSet tracks subscriptions collected for renewal on a given UTC day.
// It is advisory: processors remove themselves, operators read it.
type InFlightSet struct {
	client *redis.Client
}

func NewInFlightSet(client *redis.Client) *InFlightSet {
	return &InFlightSet{client: client}
}

// InFlightKey returns the Redis key for day.
func InFlightKey(day time.Time) string {
	return inFlightKeyPrefix + biztime.DateKey(day)
}

func (s *InFlightSet) Add(ctx context.Context, day time.Time, subscriptionIDs []uint, ttl time.Duration) error {
	if len(subscriptionIDs) == 0 {
		return nil
	}
	key := InFlightKey(day)
	members := lo.Map(subscriptionIDs, func(id uint, _ int) any {
		return strconv.FormatUint(uint64(id), 10)
	})

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add in-flight subscriptions: %w", err)
	}
	return nil
}

func (s *InFlightSet) Remove(ctx context.Context, day time.Time, subscriptionID uint) error {
	if err := s.client.SRem(ctx, InFlightKey(day), strconv.FormatUint(uint64(subscriptionID), 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove in-flight subscription: %w", err)
	}
	return nil
}

// Members returns the ids in ascending order. Unparseable members are skipped.
func (s *InFlightSet) Members(ctx context.Context, day time.Time) ([]uint, error) {
	raw, err := s.client.SMembers(ctx, InFlightKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read in-flight subscriptions: %w", err)
	}
	ids := lo.FilterMap(raw, func(member string, _ int) (uint, bool) {
		id, err := strconv.ParseUint(member, 10, 64)
		return uint(id), err == nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
