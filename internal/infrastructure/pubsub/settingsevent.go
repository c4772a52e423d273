// Package pubsub relays auto-payment settings changes between instances
// over Redis Pub/Sub so that schedulers reschedule without waiting for
// their periodic refresh.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/goroutine"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const settingsChannel = "auto_payment:settings:changed"

// SettingsChangedEvent announces that the stored settings were replaced.
// Receivers reload from the store; the cron lines are informational.
type SettingsChangedEvent struct {
	CollectorCron string `json:"collector_cron"`
	SweeperCron   string `json:"sweeper_cron"`
	Timestamp     int64  `json:"timestamp"`
	InstanceID    string `json:"instance_id"`
}

// RedisSettingsEventBus publishes and receives SettingsChangedEvent.
type RedisSettingsEventBus struct {
	client     *redis.Client
	channel    string
	clock      biztime.Clock
	logger     logger.Interface
	instanceID string
}

func NewRedisSettingsEventBus(client *redis.Client, prefix string, clock biztime.Clock, logger logger.Interface) *RedisSettingsEventBus {
	return &RedisSettingsEventBus{
		client:     client,
		channel:    prefix + settingsChannel,
		clock:      clock,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// PublishSettingsChanged announces new crontab lines. Delivery is best
// effort; the periodic refresh covers lost messages.
func (b *RedisSettingsEventBus) PublishSettingsChanged(ctx context.Context, collectorCron, sweeperCron string) error {
	event := SettingsChangedEvent{
		CollectorCron: collectorCron,
		SweeperCron:   sweeperCron,
		Timestamp:     b.clock.Now().Unix(),
		InstanceID:    b.instanceID,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settings event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish settings event", "error", err)
		return fmt.Errorf("failed to publish settings event: %w", err)
	}

	b.logger.Debugw("settings event published",
		"collector_cron", collectorCron,
		"sweeper_cron", sweeperCron,
	)
	return nil
}

// SubscribeSettingsChanged blocks until ctx is done, invoking handler for
// every event including those published by this instance. The process
// that saved the settings may not be the one running the scheduler.
func (b *RedisSettingsEventBus) SubscribeSettingsChanged(ctx context.Context, handler func(SettingsChangedEvent)) error {
	return b.subscribeWithReconnect(ctx, func(payload string) {
		var event SettingsChangedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			b.logger.Warnw("failed to unmarshal settings event",
				"payload", payload,
				"error", err,
			)
			return
		}
		handler(event)
	})
}

func (b *RedisSettingsEventBus) subscribeWithReconnect(ctx context.Context, handler func(payload string)) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := b.subscribe(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warnw("settings subscription disconnected, reconnecting",
			"channel", b.channel,
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (b *RedisSettingsEventBus) subscribe(ctx context.Context, handler func(payload string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", b.channel, err)
	}

	b.logger.Infow("subscribed to settings channel", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("settings channel closed", "channel", b.channel)
				return nil
			}

			goroutine.SafeGo(b.logger, "settings-event-handler", func() {
				handler(msg.Payload)
			})
		}
	}
}
