package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	model := mappers.UserToModel(u)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.SetID(model.ID)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	model := mappers.UserToModel(u)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.UserModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"saved_payment_method_id": model.SavedPaymentMethodID,
			"updated_at":              model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*user.User, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("id = ?", id))
}

func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*user.User, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Scopes(db.ForUpdate()).Where("id = ?", id))
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*user.User, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("external_id = ?", externalID))
}

func (r *UserRepository) GetOrCreateByExternalID(ctx context.Context, externalID string, now time.Time) (*user.User, error) {
	existing, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	u, err := user.NewUser(externalID, now)
	if err != nil {
		return nil, err
	}
	if err := r.Create(ctx, u); err != nil {
		if apperrors.IsDuplicateError(err) {
			// Concurrent first sign-in created it.
			return r.GetByExternalID(ctx, externalID)
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) first(query *gorm.DB) (*user.User, error) {
	var model models.UserModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return mappers.UserToDomain(&model), nil
}
