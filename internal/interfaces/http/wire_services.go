package http

import (
	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/infrastructure/cache"
	"github.com/orris-inc/autopay/internal/infrastructure/provider"
	"github.com/orris-inc/autopay/internal/infrastructure/pubsub"
	"github.com/orris-inc/autopay/internal/infrastructure/ratelimit"
	"github.com/orris-inc/autopay/internal/infrastructure/taskqueue"
	"github.com/orris-inc/autopay/internal/infrastructure/telegram"
)

const providerDriverFake = "fake"

// services holds the infrastructure adapters behind the application ports.
type services struct {
	gateway          paymentgateway.PaymentGateway
	notifier         notification.Notifier
	settingsStore    *cache.SettingsStore
	settingsBus      *pubsub.RedisSettingsEventBus
	inFlight         *cache.InFlightSet
	jobLock          *cache.JobLock
	queue            *taskqueue.Queue
	dispatcher       *taskqueue.Dispatcher
	rateLimiter      *ratelimit.RedisRateLimiter
	cardChangeAmount decimal.Decimal
}

func (c *Container) initServices() error {
	cfg := c.cfg

	var gateway paymentgateway.PaymentGateway
	if cfg.Provider.Driver == providerDriverFake {
		c.log.Warnw("using in-memory fake payment gateway; no real charges will be made")
		gateway = paymentgateway.NewFakeGateway()
	} else {
		gateway = provider.NewClient(cfg.Provider, c.log.Named("provider"))
	}

	var notifier notification.Notifier = notification.NopNotifier{}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(
			telegram.NewBotService(cfg.Telegram),
			c.repos.userRepo,
			c.log.Named("telegram"),
		)
	} else {
		c.log.Infow("telegram notifications disabled")
	}

	cardChangeAmount, err := decimal.NewFromString(cfg.Provider.CardChangeAmount)
	if err != nil {
		return err
	}

	queue := taskqueue.NewQueue(c.redis, cfg.Worker.KeyPrefix)

	c.svcs = &services{
		gateway:          gateway,
		notifier:         notifier,
		settingsStore:    cache.NewSettingsStore(c.redis, autopayment.SettingsFromConfig(cfg.AutoPayment), c.log.Named("settings")),
		settingsBus:      pubsub.NewRedisSettingsEventBus(c.redis, cfg.Worker.KeyPrefix, c.clock, c.log.Named("pubsub")),
		inFlight:         cache.NewInFlightSet(c.redis),
		jobLock:          cache.NewJobLock(c.redis),
		queue:            queue,
		dispatcher:       taskqueue.NewDispatcher(queue, c.clock),
		rateLimiter:      ratelimit.NewRedisRateLimiter(c.redis, cfg.Worker.KeyPrefix, c.clock),
		cardChangeAmount: cardChangeAmount,
	}
	return nil
}
