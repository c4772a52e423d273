package subscription

import (
	"context"
	"time"

	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
)

// Repository returns (nil, nil) from Get* methods when the row does not exist.
type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Update(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	// GetByIDForUpdate reads the row under SELECT ... FOR UPDATE.
	GetByIDForUpdate(ctx context.Context, id uint) (*Subscription, error)
	GetActiveByUserID(ctx context.Context, userID uint) (*Subscription, error)
	CountByUserID(ctx context.Context, userID uint) (int64, error)

	// ListActiveIDsEndingBetween returns active subscriptions with end_date in [from, to).
	ListActiveIDsEndingBetween(ctx context.Context, from, to time.Time) ([]uint, error)
	ListIDsByStatus(ctx context.Context, status vo.SubscriptionStatus) ([]uint, error)
	// ExpirePendingByUserID moves the user's pending_payment subscriptions to expired.
	ExpirePendingByUserID(ctx context.Context, userID uint, now time.Time) (int64, error)
}

type PlanRepository interface {
	Create(ctx context.Context, plan *Plan) error
	GetByID(ctx context.Context, id uint) (*Plan, error)
}
