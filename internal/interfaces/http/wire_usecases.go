package http

import (
	autopaymentUsecases "github.com/orris-inc/autopay/internal/application/autopayment/usecases"
	paymentUsecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
	promotionUsecases "github.com/orris-inc/autopay/internal/application/promotion/usecases"
	subscriptionServices "github.com/orris-inc/autopay/internal/application/subscription/services"
	subscriptionUsecases "github.com/orris-inc/autopay/internal/application/subscription/usecases"
)

// allUseCases holds all use case instances used by the application.
type allUseCases struct {
	// Renewal engine
	collectDue          *autopaymentUsecases.CollectDueSubscriptionsUseCase
	processSubscription *autopaymentUsecases.ProcessSubscriptionUseCase
	retryPayment        *autopaymentUsecases.RetryPaymentUseCase
	sweepWaiting        *autopaymentUsecases.ProcessCancelledWaitingUseCase
	getSettings         *autopaymentUsecases.GetSettingsUseCase
	updateSettings      *autopaymentUsecases.UpdateSettingsUseCase
	listInFlight        *autopaymentUsecases.ListInFlightUseCase

	// Payments
	handleWebhook    *paymentUsecases.HandleWebhookUseCase
	refundPayment    *paymentUsecases.RefundPaymentUseCase
	startCardChange  *paymentUsecases.StartCardChangeUseCase
	applyPromotion   *promotionUsecases.ApplyPromotionUseCase
	ensureUser       *subscriptionUsecases.EnsureUserUseCase
	trialEligibility *subscriptionUsecases.CheckTrialEligibilityUseCase
	createTrial      *subscriptionUsecases.CreateTrialUseCase
	createWithPay    *subscriptionUsecases.CreateSubscriptionWithPaymentUseCase
	cancel           *subscriptionUsecases.CancelSubscriptionUseCase
}

func (c *Container) initUseCases() {
	r := c.repos
	s := c.svcs
	cfg := c.cfg
	log := c.log

	renewal := subscriptionServices.NewRenewalService(r.subscriptionRepo, r.planRepo, log.Named("renewal"))

	processSubscription := autopaymentUsecases.NewProcessSubscriptionUseCase(
		r.txManager, r.subscriptionRepo, r.planRepo, r.userRepo, r.paymentRepo,
		s.gateway, s.dispatcher, s.inFlight, s.notifier, c.clock, log.Named("process_subscription"),
	)
	processSubscription.SetCurrency(cfg.Provider.Currency)
	processSubscription.SetReturnURL(cfg.Provider.ReturnURL)

	refundPayment := paymentUsecases.NewRefundPaymentUseCase(
		r.txManager, r.paymentRepo, r.refundRepo, s.gateway, s.notifier, c.clock, log.Named("refund_payment"),
	)

	c.ucs = &allUseCases{
		collectDue: autopaymentUsecases.NewCollectDueSubscriptionsUseCase(
			r.subscriptionRepo, s.inFlight, s.settingsStore, s.dispatcher, c.clock, log.Named("collector"),
		),
		processSubscription: processSubscription,
		retryPayment: autopaymentUsecases.NewRetryPaymentUseCase(
			r.txManager, r.paymentRepo, r.subscriptionRepo, r.userRepo, renewal,
			s.gateway, s.dispatcher, s.settingsStore, s.notifier, c.clock, log.Named("retry_payment"),
		),
		sweepWaiting: autopaymentUsecases.NewProcessCancelledWaitingUseCase(
			r.txManager, r.subscriptionRepo, c.clock, log.Named("sweeper"),
		),
		getSettings:    autopaymentUsecases.NewGetSettingsUseCase(s.settingsStore, log),
		updateSettings: autopaymentUsecases.NewUpdateSettingsUseCase(s.settingsStore, s.settingsBus, log),
		listInFlight:   autopaymentUsecases.NewListInFlightUseCase(s.inFlight, c.clock, log),

		handleWebhook: paymentUsecases.NewHandleWebhookUseCase(
			r.txManager, r.paymentRepo, r.refundRepo, r.subscriptionRepo, r.userRepo, renewal,
			s.gateway, s.dispatcher, s.notifier, c.clock, log.Named("webhook"),
		),
		refundPayment: refundPayment,
		startCardChange: paymentUsecases.NewStartCardChangeUseCase(
			r.txManager, r.userRepo, r.subscriptionRepo, r.paymentRepo, s.gateway,
			s.cardChangeAmount, cfg.Provider.Currency, cfg.Provider.ReturnURL, c.clock, log.Named("card_change"),
		),
		applyPromotion: promotionUsecases.NewApplyPromotionUseCase(
			r.txManager, r.subscriptionRepo, r.promotionRepo, s.notifier, c.clock, log.Named("promotion"),
		),
		ensureUser:       subscriptionUsecases.NewEnsureUserUseCase(r.userRepo, c.clock, log),
		trialEligibility: subscriptionUsecases.NewCheckTrialEligibilityUseCase(r.userRepo, r.subscriptionRepo, log),
		createTrial: subscriptionUsecases.NewCreateTrialUseCase(
			r.txManager, r.userRepo, r.subscriptionRepo, r.planRepo, r.paymentRepo,
			s.settingsStore, s.notifier, cfg.Provider.Currency, c.clock, log.Named("trial"),
		),
		createWithPay: subscriptionUsecases.NewCreateSubscriptionWithPaymentUseCase(
			r.txManager, r.userRepo, r.subscriptionRepo, r.planRepo, r.paymentRepo,
			s.gateway, cfg.Provider.Currency, cfg.Provider.ReturnURL, c.clock, log.Named("create_subscription"),
		),
		cancel: subscriptionUsecases.NewCancelSubscriptionUseCase(
			r.txManager, r.subscriptionRepo, r.planRepo, r.userRepo, r.paymentRepo,
			refundPayment, s.dispatcher, c.clock, log.Named("cancel_subscription"),
		),
	}
}
