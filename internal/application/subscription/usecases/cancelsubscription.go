package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/orris-inc/autopay/internal/application/common"
	paymentusecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/domain/payment"
	paymentvo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const cancelRefundReason = "subscription cancelled"

type PaymentRefunder interface {
	Execute(ctx context.Context, cmd paymentusecases.RefundPaymentCommand) (*common.Result, error)
}

type CancelSubscriptionCommand struct {
	SubscriptionID uint
	WithRefund     bool
}

// CancelSubscriptionUseCase stops auto-renewal for good: the subscription is
// cancelled and the saved credential forgotten. With a refund the paid
// period is cut short at now.
type CancelSubscriptionUseCase struct {
	txManager        *db.TransactionManager
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	userRepo         user.Repository
	paymentRepo      payment.Repository
	refunder         PaymentRefunder
	dispatcher       tasks.Dispatcher
	clock            biztime.Clock
	logger           logger.Interface
}

func NewCancelSubscriptionUseCase(
	txManager *db.TransactionManager,
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	userRepo user.Repository,
	paymentRepo payment.Repository,
	refunder PaymentRefunder,
	dispatcher tasks.Dispatcher,
	clock biztime.Clock,
	logger logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		txManager:        txManager,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		userRepo:         userRepo,
		paymentRepo:      paymentRepo,
		refunder:         refunder,
		dispatcher:       dispatcher,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) (*common.Result, error) {
	uc.logger.Infow("cancelling subscription",
		"subscription_id", cmd.SubscriptionID,
		"with_refund", cmd.WithRefund,
	)

	var refundPaymentID uint
	var refundAmount paymentvo.Money

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		sub, err := uc.subscriptionRepo.GetByIDForUpdate(txCtx, cmd.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewNotFoundError("subscription not found", fmt.Sprintf("subscription_id=%d", cmd.SubscriptionID))
		}
		if sub.Status() == vo.StatusCancelled || sub.Status() == vo.StatusExpired {
			return apperrors.NewConflictError("subscription already cancelled", string(sub.Status()))
		}

		u, err := uc.userRepo.GetByIDForUpdate(txCtx, sub.UserID())
		if err != nil {
			return err
		}
		if u != nil && u.HasSavedPaymentMethod() {
			u.ClearPaymentMethod(now)
			if err := uc.userRepo.Update(txCtx, u); err != nil {
				return err
			}
		}

		if cmd.WithRefund {
			amount, paymentID, err := uc.refundFor(txCtx, sub, now)
			if err != nil {
				return err
			}
			if amount.IsPositive() {
				refundAmount = amount
				refundPaymentID = paymentID
				sub.EndAt(now)
			}
		}

		if err := sub.Cancel(now); err != nil {
			return err
		}
		return uc.subscriptionRepo.Update(txCtx, sub)
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to cancel subscription", "subscription_id", cmd.SubscriptionID, "error", err)
		}
		return nil, err
	}

	if refundPaymentID == 0 {
		uc.logger.Infow("subscription cancelled", "subscription_id", cmd.SubscriptionID)
		return common.Succeeded("subscription cancelled", cmd.SubscriptionID), nil
	}

	amount := refundAmount.Amount()
	result, err := uc.refunder.Execute(ctx, paymentusecases.RefundPaymentCommand{
		PaymentID: refundPaymentID,
		Amount:    &amount,
		Reason:    cancelRefundReason,
	})
	if err != nil {
		if apperrors.IsConflictError(err) {
			uc.logger.Infow("payment was already refunded", "payment_id", refundPaymentID)
			return common.Succeeded("subscription cancelled, payment already refunded", cmd.SubscriptionID), nil
		}
		// The cancel is committed; hand the refund to the task queue.
		uc.logger.Warnw("refund after cancel failed, enqueuing refund task",
			"subscription_id", cmd.SubscriptionID,
			"payment_id", refundPaymentID,
			"error", err,
		)
		if dispatchErr := uc.dispatcher.DispatchRefundPayment(ctx, tasks.RefundPaymentPayload{
			PaymentID: refundPaymentID,
			Amount:    refundAmount.StringFixed(),
			Reason:    cancelRefundReason,
		}); dispatchErr != nil {
			uc.logger.Errorw("failed to enqueue refund task", "payment_id", refundPaymentID, "error", dispatchErr)
			return nil, dispatchErr
		}
		return common.Succeeded("subscription cancelled, refund scheduled", cmd.SubscriptionID), nil
	}

	uc.logger.Infow("subscription cancelled with refund",
		"subscription_id", cmd.SubscriptionID,
		"payment_id", refundPaymentID,
		"amount", refundAmount.StringFixed(),
	)
	return common.Succeeded(fmt.Sprintf("subscription cancelled, %s", result.Message), append([]uint{cmd.SubscriptionID}, result.IDs...)...), nil
}

func (uc *CancelSubscriptionUseCase) refundFor(ctx context.Context, sub *subscription.Subscription, now time.Time) (paymentvo.Money, uint, error) {
	p, err := uc.paymentRepo.GetLatestRefundable(ctx, sub.ID())
	if err != nil {
		return paymentvo.Money{}, 0, err
	}
	if p == nil {
		return paymentvo.Money{}, 0, nil
	}
	plan, err := uc.planRepo.GetByID(ctx, sub.PlanID())
	if err != nil {
		return paymentvo.Money{}, 0, err
	}
	if plan == nil {
		return paymentvo.Money{}, 0, apperrors.NewNotFoundError("plan not found", fmt.Sprintf("plan_id=%d", sub.PlanID()))
	}
	return payment.CalculateRefund(p, sub.EndDate(), plan.DurationDays(), now), p.ID(), nil
}
