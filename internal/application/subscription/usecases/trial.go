package usecases

import (
	"context"
	"fmt"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/domain/payment"
	paymentvo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// CheckTrialEligibilityUseCase reports whether a user never had a subscription.
type CheckTrialEligibilityUseCase struct {
	userRepo         user.Repository
	subscriptionRepo subscription.Repository
	logger           logger.Interface
}

func NewCheckTrialEligibilityUseCase(userRepo user.Repository, subscriptionRepo subscription.Repository, logger logger.Interface) *CheckTrialEligibilityUseCase {
	return &CheckTrialEligibilityUseCase{userRepo: userRepo, subscriptionRepo: subscriptionRepo, logger: logger}
}

func (uc *CheckTrialEligibilityUseCase) Execute(ctx context.Context, userID uint) (bool, error) {
	u, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, apperrors.NewNotFoundError("user not found", fmt.Sprintf("user_id=%d", userID))
	}
	count, err := uc.subscriptionRepo.CountByUserID(ctx, userID)
	if err != nil {
		uc.logger.Errorw("failed to count user subscriptions", "user_id", userID, "error", err)
		return false, err
	}
	return count == 0, nil
}

type CreateTrialCommand struct {
	UserID uint
	PlanID uint `json:"plan_id" binding:"required"`
}

// CreateTrialUseCase grants the one-off trial backed by a synthetic
// zero-amount payment that is never refunded.
type CreateTrialUseCase struct {
	txManager        *db.TransactionManager
	userRepo         user.Repository
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	paymentRepo      payment.Repository
	settings         autopayment.SettingsProvider
	notifier         notification.Notifier
	currency         string
	clock            biztime.Clock
	logger           logger.Interface
}

func NewCreateTrialUseCase(
	txManager *db.TransactionManager,
	userRepo user.Repository,
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	paymentRepo payment.Repository,
	settings autopayment.SettingsProvider,
	notifier notification.Notifier,
	currency string,
	clock biztime.Clock,
	logger logger.Interface,
) *CreateTrialUseCase {
	if currency == "" {
		currency = paymentvo.DefaultCurrency
	}
	return &CreateTrialUseCase{
		txManager:        txManager,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		paymentRepo:      paymentRepo,
		settings:         settings,
		notifier:         notifier,
		currency:         currency,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *CreateTrialUseCase) Execute(ctx context.Context, cmd CreateTrialCommand) (*common.Result, error) {
	settings, err := uc.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var sub *subscription.Subscription
	var p *payment.Payment

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		u, err := uc.userRepo.GetByIDForUpdate(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperrors.NewNotFoundError("user not found", fmt.Sprintf("user_id=%d", cmd.UserID))
		}

		count, err := uc.subscriptionRepo.CountByUserID(txCtx, u.ID())
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewConflictError("trial is only available to new users")
		}

		plan, err := uc.planRepo.GetByID(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return apperrors.NewNotFoundError("plan not found", fmt.Sprintf("plan_id=%d", cmd.PlanID))
		}

		sub, err = subscription.NewTrialSubscription(u.ID(), plan.ID(), settings.TrialPeriodDays, now)
		if err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Create(txCtx, sub); err != nil {
			return err
		}

		p, err = payment.NewTrialPayment(u.ID(), sub.ID(), uc.currency, now)
		if err != nil {
			return err
		}
		if err := uc.paymentRepo.Create(txCtx, p); err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.NewConflictError("trial already used")
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to create trial", "user_id", cmd.UserID, "error", err)
		}
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, notification.Notification{
		Kind:           notification.KindSubscriptionActivated,
		UserID:         cmd.UserID,
		SubscriptionID: sub.ID(),
		PaymentID:      p.ID(),
		EndDate:        sub.EndDate(),
	}); err != nil {
		uc.logger.Warnw("failed to send trial notification", "user_id", cmd.UserID, "error", err)
	}

	uc.logger.Infow("trial subscription created",
		"user_id", cmd.UserID,
		"subscription_id", sub.ID(),
		"trial_days", settings.TrialPeriodDays,
	)
	return common.Succeeded(fmt.Sprintf("trial active for %d days", settings.TrialPeriodDays), sub.ID(), p.ID()), nil
}
