package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// CollectDueSubscriptionsUseCase finds active subscriptions ending today and
// enqueues one processor task per subscription.
type CollectDueSubscriptionsUseCase struct {
	subscriptionRepo subscription.Repository
	inFlight         autopayment.InFlightSet
	settings         autopayment.SettingsProvider
	dispatcher       tasks.Dispatcher
	clock            biztime.Clock
	logger           logger.Interface
}

func NewCollectDueSubscriptionsUseCase(
	subscriptionRepo subscription.Repository,
	inFlight autopayment.InFlightSet,
	settings autopayment.SettingsProvider,
	dispatcher tasks.Dispatcher,
	clock biztime.Clock,
	logger logger.Interface,
) *CollectDueSubscriptionsUseCase {
	return &CollectDueSubscriptionsUseCase{
		subscriptionRepo: subscriptionRepo,
		inFlight:         inFlight,
		settings:         settings,
		dispatcher:       dispatcher,
		clock:            clock,
		logger:           logger,
	}
}

// Execute is safe to rerun: every enqueued task is idempotent per day.
func (uc *CollectDueSubscriptionsUseCase) Execute(ctx context.Context) (*common.Result, error) {
	now := uc.clock.Now()
	from, to := biztime.DayRangeUTC(now)

	settings, err := uc.settings.Load(ctx)
	if err != nil {
		uc.logger.Errorw("failed to load auto payment settings", "error", err)
		return nil, err
	}

	ids, err := uc.subscriptionRepo.ListActiveIDsEndingBetween(ctx, from, to)
	if err != nil {
		uc.logger.Errorw("failed to list subscriptions due today", "date", biztime.DateKey(now), "error", err)
		return nil, err
	}

	uc.logger.Infow("collected subscriptions due today",
		"date", biztime.DateKey(now),
		"count", len(ids),
	)
	if len(ids) == 0 {
		return common.Succeeded("no subscriptions due today"), nil
	}

	if err := uc.inFlight.Add(ctx, now, ids, settings.InFlightTTL()); err != nil {
		uc.logger.Warnw("failed to record in-flight subscriptions", "date", biztime.DateKey(now), "error", err)
	}

	var errs []error
	enqueued := make([]uint, 0, len(ids))
	for _, id := range ids {
		if err := uc.dispatcher.DispatchProcessSubscription(ctx, id); err != nil {
			uc.logger.Errorw("failed to enqueue subscription processing", "subscription_id", id, "error", err)
			errs = append(errs, fmt.Errorf("subscription %d: %w", id, err))
			continue
		}
		enqueued = append(enqueued, id)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("enqueued %d of %d subscriptions: %w", len(enqueued), len(ids), errors.Join(errs...))
	}

	return common.Succeeded(fmt.Sprintf("enqueued %d subscriptions", len(enqueued)), enqueued...), nil
}
