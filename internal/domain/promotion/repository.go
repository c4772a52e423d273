package promotion

import "context"

type Repository interface {
	Create(ctx context.Context, promotion *Promotion) error
	GetByID(ctx context.Context, id uint) (*Promotion, error)
	GetByCode(ctx context.Context, code string) (*Promotion, error)
	// IncrementUsage bumps current_uses only while below max_uses.
	// Returns false when the cap was already reached.
	IncrementUsage(ctx context.Context, id uint) (bool, error)

	CreateUsage(ctx context.Context, usage *Usage) error
	HasUsage(ctx context.Context, userID, promotionID uint) (bool, error)
}
