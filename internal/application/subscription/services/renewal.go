// Package services holds subscription logic shared by several use cases.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/orris-inc/autopay/internal/domain/payment"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// RenewalService applies a succeeded payment to its subscription. It must run
// inside the caller's transaction with the subscription row already locked.
type RenewalService struct {
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	logger           logger.Interface
}

func NewRenewalService(
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	logger logger.Interface,
) *RenewalService {
	return &RenewalService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		logger:           logger,
	}
}

// ApplySucceededPayment decides and applies the reaction of sub to p.
// Reactivation is refused when the user already holds another active subscription.
func (s *RenewalService) ApplySucceededPayment(ctx context.Context, sub *subscription.Subscription, p *payment.Payment, now time.Time) (subscription.PaymentReaction, error) {
	reaction := sub.ReactionToSucceededPayment(p.Method().IsCardChange(), now)
	if reaction == subscription.ReactionNone {
		return reaction, nil
	}

	if reaction == subscription.ReactionReactivate || reaction == subscription.ReactionActivateFirstCharge {
		other, err := s.subscriptionRepo.GetActiveByUserID(ctx, sub.UserID())
		if err != nil {
			return subscription.ReactionNone, err
		}
		if other != nil && other.ID() != sub.ID() {
			s.logger.Warnw("user already has an active subscription, payment not applied",
				"subscription_id", sub.ID(),
				"active_subscription_id", other.ID(),
				"payment_id", p.ID(),
				"reaction", reaction,
			)
			return subscription.ReactionNone, nil
		}
	}

	plan, err := s.planRepo.GetByID(ctx, sub.PlanID())
	if err != nil {
		return subscription.ReactionNone, err
	}
	if plan == nil {
		return subscription.ReactionNone, fmt.Errorf("plan %d not found", sub.PlanID())
	}

	if err := sub.ApplyPaymentReaction(reaction, plan.DurationDays(), now); err != nil {
		return subscription.ReactionNone, err
	}
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return subscription.ReactionNone, err
	}

	s.logger.Infow("subscription renewed from payment",
		"subscription_id", sub.ID(),
		"payment_id", p.ID(),
		"reaction", reaction,
		"end_date", sub.EndDate(),
	)
	return reaction, nil
}
