package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/domain/subscription"
	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/shared/db"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewSubscriptionRepository(db *gorm.DB, logger logger.Interface) subscription.Repository {
	return &SubscriptionRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, s *subscription.Subscription) error {
	model := mappers.SubscriptionToModel(s)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create subscription", "user_id", s.UserID(), "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	s.SetID(model.ID)
	return nil
}

func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, s *subscription.Subscription) error {
	model := mappers.SubscriptionToModel(s)
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":               model.Status,
			"start_date":           model.StartDate,
			"end_date":             model.EndDate,
			"promotion_id":         model.PromotionID,
			"promotion_applied_at": model.PromotionAppliedAt,
			"updated_at":           model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update subscription", "subscription_id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	return nil
}

func (r *SubscriptionRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("id = ?", id))
}

func (r *SubscriptionRepositoryImpl) GetByIDForUpdate(ctx context.Context, id uint) (*subscription.Subscription, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Scopes(db.ForUpdate()).Where("id = ?", id))
}

func (r *SubscriptionRepositoryImpl) GetActiveByUserID(ctx context.Context, userID uint) (*subscription.Subscription, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).
		Where("user_id = ? AND status = ?", userID, vo.StatusActive).
		Order("end_date DESC"))
}

func (r *SubscriptionRepositoryImpl) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}

func (r *SubscriptionRepositoryImpl) ListActiveIDsEndingBetween(ctx context.Context, from, to time.Time) ([]uint, error) {
	var ids []uint
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("status = ? AND end_date >= ? AND end_date < ?", vo.StatusActive, from.UTC(), to.UTC()).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		r.logger.Errorw("failed to list due subscriptions", "from", from, "to", to, "error", err)
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	return ids, nil
}

func (r *SubscriptionRepositoryImpl) ListIDsByStatus(ctx context.Context, status vo.SubscriptionStatus) ([]uint, error) {
	var ids []uint
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("status = ?", status).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions by status: %w", err)
	}
	return ids, nil
}

func (r *SubscriptionRepositoryImpl) ExpirePendingByUserID(ctx context.Context, userID uint, now time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("user_id = ? AND status = ?", userID, vo.StatusPendingPayment).
		Updates(map[string]interface{}{
			"status":     vo.StatusExpired.String(),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire pending subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *SubscriptionRepositoryImpl) first(query *gorm.DB) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return mappers.SubscriptionToDomain(&model)
}

type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, p *subscription.Plan) error {
	model := mappers.PlanToModel(p)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.SetID(model.ID)
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	var model models.PlanModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mappers.PlanToDomain(&model), nil
}
