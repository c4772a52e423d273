package mappers

import (
	"github.com/orris-inc/autopay/internal/domain/promotion"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
)

func PromotionToModel(p *promotion.Promotion) *models.PromotionModel {
	return &models.PromotionModel{
		ID:             p.ID(),
		Code:           p.Code(),
		Type:           string(p.Type()),
		Value:          p.Value(),
		ValidFrom:      p.ValidFrom(),
		ValidUntil:     p.ValidUntil(),
		MaxUses:        p.MaxUses(),
		CurrentUses:    p.CurrentUses(),
		IsActive:       p.IsActive(),
		AssignedUserID: p.AssignedUserID(),
		CreatedAt:      p.CreatedAt(),
	}
}

func PromotionToDomain(model *models.PromotionModel) *promotion.Promotion {
	return promotion.ReconstructPromotion(
		model.ID,
		model.Code,
		promotion.Type(model.Type),
		model.Value,
		model.ValidFrom.UTC(),
		utcPtr(model.ValidUntil),
		model.MaxUses,
		model.CurrentUses,
		model.IsActive,
		model.AssignedUserID,
		model.CreatedAt.UTC(),
	)
}

func PromotionUsageToModel(u *promotion.Usage) *models.PromotionUsageModel {
	return &models.PromotionUsageModel{
		ID:             u.ID(),
		UserID:         u.UserID(),
		PromotionID:    u.PromotionID(),
		SubscriptionID: u.SubscriptionID(),
		CreatedAt:      u.CreatedAt(),
	}
}
