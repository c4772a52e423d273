package usecases

import (
	"context"
	"fmt"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// ProcessCancelledWaitingUseCase finalises subscriptions whose retries were
// exhausted. Each row is re-checked under lock since a late webhook may have
// reactivated it.
type ProcessCancelledWaitingUseCase struct {
	txManager        *db.TransactionManager
	subscriptionRepo subscription.Repository
	clock            biztime.Clock
	logger           logger.Interface
}

func NewProcessCancelledWaitingUseCase(
	txManager *db.TransactionManager,
	subscriptionRepo subscription.Repository,
	clock biztime.Clock,
	logger logger.Interface,
) *ProcessCancelledWaitingUseCase {
	return &ProcessCancelledWaitingUseCase{
		txManager:        txManager,
		subscriptionRepo: subscriptionRepo,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *ProcessCancelledWaitingUseCase) Execute(ctx context.Context) (*common.Result, error) {
	ids, err := uc.subscriptionRepo.ListIDsByStatus(ctx, vo.StatusCancelledWaiting)
	if err != nil {
		uc.logger.Errorw("failed to list cancelled_waiting subscriptions", "error", err)
		return nil, err
	}

	cancelled := make([]uint, 0, len(ids))
	for _, id := range ids {
		changed, err := uc.finalize(ctx, id)
		if err != nil {
			uc.logger.Errorw("failed to finalize subscription", "subscription_id", id, "error", err)
			continue
		}
		if changed {
			cancelled = append(cancelled, id)
		}
	}

	uc.logger.Infow("cancelled_waiting sweep finished",
		"candidates", len(ids),
		"cancelled", len(cancelled),
	)
	return common.Succeeded(fmt.Sprintf("cancelled %d subscriptions", len(cancelled)), cancelled...), nil
}

func (uc *ProcessCancelledWaitingUseCase) finalize(ctx context.Context, id uint) (bool, error) {
	changed := false
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		sub, err := uc.subscriptionRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}
		if !sub.FinalizeCancelledWaiting(uc.clock.Now()) {
			uc.logger.Infow("subscription left cancelled_waiting before sweep",
				"subscription_id", id,
				"status", sub.Status(),
			)
			return nil
		}
		changed = true
		return uc.subscriptionRepo.Update(txCtx, sub)
	})
	return changed, err
}
