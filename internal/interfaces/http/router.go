package http

import (
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/orris-inc/autopay/internal/interfaces/http/middleware"
)

// SetupRoutes configures all HTTP routes
func (c *Container) SetupRoutes() {
	h := c.hdlrs

	c.engine.Use(middleware.CustomLogger(c.log.Named("http")))
	c.engine.Use(middleware.Recovery(c.log))

	c.engine.GET("/health", h.healthHandler.Health)
	c.engine.GET("/version", h.healthHandler.Version)
	c.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	c.engine.POST("/webhooks/payment-provider", h.webhookHandler.HandlePaymentWebhook)

	c.setupUserRoutes()
	c.setupSubscriptionRoutes()
	c.setupAdminRoutes()
}

// setupUserRoutes configures registration, trial and card change routes
func (c *Container) setupUserRoutes() {
	users := c.engine.Group("/api/users")
	users.Use(c.rateLimitMiddleware.Limit())
	{
		users.POST("", c.hdlrs.userHandler.EnsureUser)
		users.GET("/:id/trial-eligibility", c.hdlrs.userHandler.TrialEligibility)
		users.POST("/:id/trial", c.hdlrs.userHandler.CreateTrial)
		users.POST("/:id/card-change", c.hdlrs.userHandler.StartCardChange)
	}
}

func (c *Container) setupSubscriptionRoutes() {
	subscriptions := c.engine.Group("/api/subscriptions")
	subscriptions.Use(c.rateLimitMiddleware.Limit())
	{
		subscriptions.POST("", c.hdlrs.subscriptionHandler.Create)
		subscriptions.POST("/:id/cancel", c.hdlrs.subscriptionHandler.Cancel)
		subscriptions.POST("/:id/promotions", c.hdlrs.subscriptionHandler.ApplyPromotion)
	}
}

// setupAdminRoutes configures token-protected operator routes
func (c *Container) setupAdminRoutes() {
	admin := c.engine.Group("/admin")
	admin.Use(c.adminTokenMiddleware.RequireAdminToken())
	{
		admin.POST("/auto-payment/collect", c.hdlrs.adminHandler.Collect)
		admin.POST("/auto-payment/sweep", c.hdlrs.adminHandler.Sweep)
		admin.GET("/auto-payment/settings", c.hdlrs.adminHandler.GetSettings)
		admin.PUT("/auto-payment/settings", c.hdlrs.adminHandler.UpdateSettings)
		admin.GET("/auto-payment/in-flight", c.hdlrs.adminHandler.ListInFlight)

		admin.POST("/subscriptions/:id/process", c.hdlrs.adminHandler.ProcessSubscription)
		admin.POST("/payments/:id/retry", c.hdlrs.adminHandler.RetryPayment)

		admin.GET("/tasks/stats", c.hdlrs.adminHandler.TaskStats)
		admin.GET("/tasks/dead", c.hdlrs.adminHandler.DeadTasks)
	}
}
