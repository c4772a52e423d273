package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/domain/promotion"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/shared/db"
)

type PromotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	model := mappers.PromotionToModel(p)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create promotion: %w", err)
	}
	p.SetID(model.ID)
	return nil
}

func (r *PromotionRepository) GetByID(ctx context.Context, id uint) (*promotion.Promotion, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("id = ?", id))
}

func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("code = ?", promotion.NormalizeCode(code)))
}

// IncrementUsage is a conditional update so the cap holds at every commit
// even when two redemptions race past validation.
func (r *PromotionRepository) IncrementUsage(ctx context.Context, id uint) (bool, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PromotionModel{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", id).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if result.Error != nil {
		return false, fmt.Errorf("failed to increment promotion usage: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *PromotionRepository) CreateUsage(ctx context.Context, u *promotion.Usage) error {
	model := mappers.PromotionUsageToModel(u)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create promotion usage: %w", err)
	}
	u.SetID(model.ID)
	return nil
}

func (r *PromotionRepository) HasUsage(ctx context.Context, userID, promotionID uint) (bool, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.PromotionUsageModel{}).
		Where("user_id = ? AND promotion_id = ?", userID, promotionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check promotion usage: %w", err)
	}
	return count > 0, nil
}

func (r *PromotionRepository) first(query *gorm.DB) (*promotion.Promotion, error) {
	var model models.PromotionModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return mappers.PromotionToDomain(&model), nil
}
