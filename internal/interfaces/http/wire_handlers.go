package http

import (
	"context"

	"github.com/orris-inc/autopay/internal/infrastructure/ratelimit"
	"github.com/orris-inc/autopay/internal/interfaces/http/handlers"
	"github.com/orris-inc/autopay/internal/interfaces/http/middleware"
)

// allHandlers holds all HTTP handler instances used by the application.
type allHandlers struct {
	healthHandler       *handlers.HealthHandler
	webhookHandler      *handlers.WebhookHandler
	userHandler         *handlers.UserHandler
	subscriptionHandler *handlers.SubscriptionHandler
	adminHandler        *handlers.AdminHandler
}

func (c *Container) initHandlers() {
	u := c.ucs
	log := c.log.Named("http")

	c.adminTokenMiddleware = middleware.NewAdminTokenMiddleware(c.cfg.Admin.APIToken, log)
	c.rateLimitMiddleware = middleware.NewRateLimiter(c.svcs.rateLimiter, ratelimit.Limits{
		PerMinute: c.cfg.Server.RateLimitPerMinute,
		PerHour:   c.cfg.Server.RateLimitPerHour,
	}, log)

	c.hdlrs = &allHandlers{
		healthHandler: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := c.db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return c.redis.Ping(ctx).Err()
			},
		}, log),
		webhookHandler: handlers.NewWebhookHandler(u.handleWebhook, log),
		userHandler: handlers.NewUserHandler(
			u.ensureUser, u.trialEligibility, u.createTrial, u.startCardChange, log,
		),
		subscriptionHandler: handlers.NewSubscriptionHandler(
			u.createWithPay, u.cancel, u.applyPromotion, log,
		),
		adminHandler: handlers.NewAdminHandler(
			u.collectDue, u.sweepWaiting, u.processSubscription, u.retryPayment,
			u.getSettings, u.updateSettings, u.listInFlight, c.svcs.queue, log,
		),
	}
}
