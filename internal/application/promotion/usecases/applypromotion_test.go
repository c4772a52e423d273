package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autopaymentusecases "github.com/orris-inc/autopay/internal/application/autopayment/usecases"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/domain/promotion"
	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/testutil/fixture"
)

var (
	day       = 24 * time.Hour
	halfPast  = time.Date(2026, 4, 10, 0, 30, 0, 0, time.UTC)
	endsToday = time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)
)

func newUseCase(env *fixture.Env) *ApplyPromotionUseCase {
	return NewApplyPromotionUseCase(env.TxManager, env.Subscriptions, env.Promotions, env.Notifier, env.Clock, env.Logger)
}

func seedPromotion(t *testing.T, env *fixture.Env, code string, days int, maxUses *int, assigned *uint) *promotion.Promotion {
	t.Helper()
	p, err := promotion.NewBonusDaysPromotion(code, days, halfPast.Add(-day), nil, maxUses, assigned, halfPast)
	require.NoError(t, err)
	require.NoError(t, env.Promotions.Create(context.Background(), p))
	return p
}

func TestPromotionSameDaySkipsRenewal(t *testing.T) {
	env := fixture.New(t, halfPast)
	ctx := context.Background()
	u := env.SeedUser(t, "1001", "pm_1")
	plan := env.SeedPlan(t, 100, 30)
	sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
	seedPromotion(t, env, "PROMO7", 7, nil, nil)

	result, err := newUseCase(env).Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: " promo7 "})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, env.Notifier.OfKind(notification.KindPromotionApplied), 1)

	env.Clock.Set(time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC))
	process := autopaymentusecases.NewProcessSubscriptionUseCase(
		env.TxManager, env.Subscriptions, env.Plans, env.Users, env.Payments,
		env.Gateway, env.Dispatcher, env.InFlight, env.Notifier, env.Clock, env.Logger,
	)
	skipped, err := process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)
	assert.Equal(t, common.ReasonPromotionAppliedToday, skipped.Reason)

	assert.Equal(t, endsToday.Add(7*day), env.Subscription(t, sub.ID()).EndDate())
	assert.Empty(t, env.PaymentsOf(t, sub.ID()))
	assert.Zero(t, env.Gateway.CreateCalls())
}

func TestPromotionAlreadyUsed(t *testing.T) {
	env := fixture.New(t, halfPast)
	ctx := context.Background()
	u := env.SeedUser(t, "1001", "")
	plan := env.SeedPlan(t, 100, 30)
	sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
	promo := seedPromotion(t, env, "TWICE", 3, nil, nil)
	uc := newUseCase(env)

	_, err := uc.Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "TWICE"})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "TWICE"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Contains(t, err.Error(), "already used")

	assert.Equal(t, endsToday.Add(3*day), env.Subscription(t, sub.ID()).EndDate())
	stored, err := env.Promotions.GetByID(ctx, promo.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentUses())
}

func TestPromotionLimitReached(t *testing.T) {
	env := fixture.New(t, halfPast)
	ctx := context.Background()
	plan := env.SeedPlan(t, 100, 30)
	first := env.SeedUser(t, "1", "")
	second := env.SeedUser(t, "2", "")
	subA := env.SeedSubscription(t, first.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
	subB := env.SeedSubscription(t, second.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
	one := 1
	seedPromotion(t, env, "ONCE", 5, &one, nil)
	uc := newUseCase(env)

	_, err := uc.Execute(ctx, ApplyPromotionCommand{SubscriptionID: subA.ID(), Code: "ONCE"})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, ApplyPromotionCommand{SubscriptionID: subB.ID(), Code: "ONCE"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Equal(t, endsToday, env.Subscription(t, subB.ID()).EndDate())
}

func TestPromotionRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive subscription", func(t *testing.T) {
		env := fixture.New(t, halfPast)
		u := env.SeedUser(t, "1", "")
		plan := env.SeedPlan(t, 100, 30)
		sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusCancelled, endsToday.Add(-30*day), endsToday)
		seedPromotion(t, env, "CODE", 5, nil, nil)

		_, err := newUseCase(env).Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "CODE"})
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("assigned to another user", func(t *testing.T) {
		env := fixture.New(t, halfPast)
		u := env.SeedUser(t, "1", "")
		plan := env.SeedPlan(t, 100, 30)
		sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
		other := u.ID() + 100
		seedPromotion(t, env, "MINE", 5, nil, &other)

		_, err := newUseCase(env).Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "MINE"})
		assert.True(t, apperrors.IsValidationError(err))
		assert.Equal(t, endsToday, env.Subscription(t, sub.ID()).EndDate())
	})

	t.Run("unknown code", func(t *testing.T) {
		env := fixture.New(t, halfPast)
		u := env.SeedUser(t, "1", "")
		plan := env.SeedPlan(t, 100, 30)
		sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)

		_, err := newUseCase(env).Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "NOPE"})
		assert.True(t, apperrors.IsNotFoundError(err))
	})
}

// racedUsageRepo hides existing usages from the guard read, as when a
// concurrent redeem commits between the read and the insert.
type racedUsageRepo struct {
	promotion.Repository
}

func (r racedUsageRepo) HasUsage(context.Context, uint, uint) (bool, error) {
	return false, nil
}

func TestPromotionConcurrentRedeemLosesOnUsageKey(t *testing.T) {
	env := fixture.New(t, halfPast)
	ctx := context.Background()
	u := env.SeedUser(t, "1001", "")
	plan := env.SeedPlan(t, 100, 30)
	sub := env.SeedSubscription(t, u.ID(), plan.ID(), vo.StatusActive, endsToday.Add(-30*day), endsToday)
	promo := seedPromotion(t, env, "RACE", 5, nil, nil)

	winnerSub := sub.ID()
	require.NoError(t, env.Promotions.CreateUsage(ctx, promotion.NewUsage(u.ID(), promo.ID(), &winnerSub, halfPast)))

	uc := NewApplyPromotionUseCase(env.TxManager, env.Subscriptions, racedUsageRepo{env.Promotions}, env.Notifier, env.Clock, env.Logger)
	_, err := uc.Execute(ctx, ApplyPromotionCommand{SubscriptionID: sub.ID(), Code: "RACE"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Contains(t, err.Error(), "already used")

	stored := env.Subscription(t, sub.ID())
	assert.Equal(t, endsToday, stored.EndDate())
	assert.Nil(t, stored.PromotionID())

	reloaded, err := env.Promotions.GetByID(ctx, promo.ID())
	require.NoError(t, err)
	assert.Zero(t, reloaded.CurrentUses())
	assert.Empty(t, env.Notifier.Sent())
}
