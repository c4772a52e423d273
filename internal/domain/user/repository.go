package user

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	// GetOrCreateByExternalID resolves a user, creating it on first sight.
	GetOrCreateByExternalID(ctx context.Context, externalID string, now time.Time) (*User, error)
}
