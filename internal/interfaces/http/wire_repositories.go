package http

import (
	"github.com/orris-inc/autopay/internal/domain/payment"
	"github.com/orris-inc/autopay/internal/domain/promotion"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/infrastructure/repository"
	"github.com/orris-inc/autopay/internal/shared/db"
)

// repositories holds all repository instances used by the application.
type repositories struct {
	txManager        *db.TransactionManager
	userRepo         user.Repository
	planRepo         subscription.PlanRepository
	subscriptionRepo subscription.Repository
	paymentRepo      payment.Repository
	refundRepo       payment.RefundRepository
	promotionRepo    promotion.Repository
}

func (c *Container) initRepositories() {
	c.repos = &repositories{
		txManager:        db.NewTransactionManager(c.db),
		userRepo:         repository.NewUserRepository(c.db),
		planRepo:         repository.NewPlanRepository(c.db),
		subscriptionRepo: repository.NewSubscriptionRepository(c.db, c.log.Named("subscription_repository")),
		paymentRepo:      repository.NewPaymentRepository(c.db),
		refundRepo:       repository.NewRefundRepository(c.db),
		promotionRepo:    repository.NewPromotionRepository(c.db),
	}
}
