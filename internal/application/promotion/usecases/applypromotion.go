package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/domain/promotion"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type ApplyPromotionCommand struct {
	SubscriptionID uint
	Code           string `json:"code" binding:"required"`
}

// ApplyPromotionUseCase redeems a bonus-days code on an active subscription.
// Only the subscription row is locked; the usage unique key and the
// conditional usage increment arbitrate concurrent redeems.
type ApplyPromotionUseCase struct {
	txManager        *db.TransactionManager
	subscriptionRepo subscription.Repository
	promotionRepo    promotion.Repository
	notifier         notification.Notifier
	clock            biztime.Clock
	logger           logger.Interface
}

func NewApplyPromotionUseCase(
	txManager *db.TransactionManager,
	subscriptionRepo subscription.Repository,
	promotionRepo promotion.Repository,
	notifier notification.Notifier,
	clock biztime.Clock,
	logger logger.Interface,
) *ApplyPromotionUseCase {
	return &ApplyPromotionUseCase{
		txManager:        txManager,
		subscriptionRepo: subscriptionRepo,
		promotionRepo:    promotionRepo,
		notifier:         notifier,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *ApplyPromotionUseCase) Execute(ctx context.Context, cmd ApplyPromotionCommand) (*common.Result, error) {
	code := promotion.NormalizeCode(cmd.Code)
	if code == "" {
		return nil, apperrors.NewValidationError("promotion code is required")
	}

	var sub *subscription.Subscription
	var promo *promotion.Promotion

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		var err error
		sub, err = uc.subscriptionRepo.GetByIDForUpdate(txCtx, cmd.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewNotFoundError("subscription not found", fmt.Sprintf("subscription_id=%d", cmd.SubscriptionID))
		}
		if !sub.Status().IsActive() {
			return apperrors.NewValidationError("promotions apply to active subscriptions only", string(sub.Status()))
		}

		promo, err = uc.promotionRepo.GetByCode(txCtx, code)
		if err != nil {
			return err
		}
		if promo == nil {
			return apperrors.NewNotFoundError("promotion not found")
		}
		if err := promo.CheckRedeemable(sub.UserID(), now); err != nil {
			return redeemError(err)
		}

		used, err := uc.promotionRepo.HasUsage(txCtx, sub.UserID(), promo.ID())
		if err != nil {
			return err
		}
		if used {
			return redeemError(promotion.ErrAlreadyUsed)
		}

		if err := sub.ApplyBonusDays(promo.ID(), promo.Value(), now); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			return err
		}

		subID := sub.ID()
		if err := uc.promotionRepo.CreateUsage(txCtx, promotion.NewUsage(sub.UserID(), promo.ID(), &subID, now)); err != nil {
			if apperrors.IsDuplicateError(err) {
				return redeemError(promotion.ErrAlreadyUsed)
			}
			return err
		}

		ok, err := uc.promotionRepo.IncrementUsage(txCtx, promo.ID())
		if err != nil {
			return err
		}
		if !ok {
			return redeemError(promotion.ErrLimitReached)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			uc.logger.Infow("promotion rejected",
				"subscription_id", cmd.SubscriptionID,
				"code", code,
				"error", err,
			)
		} else {
			uc.logger.Errorw("failed to apply promotion", "subscription_id", cmd.SubscriptionID, "code", code, "error", err)
		}
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, notification.Notification{
		Kind:           notification.KindPromotionApplied,
		UserID:         sub.UserID(),
		SubscriptionID: sub.ID(),
		EndDate:        sub.EndDate(),
		PromotionCode:  promo.Code(),
		BonusDays:      promo.Value(),
	}); err != nil {
		uc.logger.Warnw("failed to send promotion notification", "subscription_id", sub.ID(), "error", err)
	}

	uc.logger.Infow("promotion applied",
		"subscription_id", sub.ID(),
		"promotion_id", promo.ID(),
		"bonus_days", promo.Value(),
		"end_date", sub.EndDate(),
	)
	return common.Succeeded(fmt.Sprintf("%d bonus days added", promo.Value()), sub.ID()), nil
}

// redeemError maps domain rejections to API errors.
func redeemError(err error) error {
	switch {
	case errors.Is(err, promotion.ErrAlreadyUsed), errors.Is(err, promotion.ErrLimitReached):
		return apperrors.NewConflictError(err.Error())
	default:
		return apperrors.NewValidationError(err.Error())
	}
}
