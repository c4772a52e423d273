package mappers

import (
	"time"

	"github.com/orris-inc/autopay/internal/domain/subscription"
	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
)

func SubscriptionToModel(s *subscription.Subscription) *models.SubscriptionModel {
	return &models.SubscriptionModel{
		ID:                 s.ID(),
		UserID:             s.UserID(),
		PlanID:             s.PlanID(),
		Status:             s.Status().String(),
		StartDate:          s.StartDate(),
		EndDate:            s.EndDate(),
		PromotionID:        s.PromotionID(),
		PromotionAppliedAt: s.PromotionAppliedAt(),
		CreatedAt:          s.CreatedAt(),
		UpdatedAt:          s.UpdatedAt(),
	}
}

func SubscriptionToDomain(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	status, err := vo.ParseStatus(model.Status)
	if err != nil {
		return nil, err
	}
	return subscription.ReconstructSubscription(
		model.ID,
		model.UserID,
		model.PlanID,
		status,
		model.StartDate.UTC(),
		model.EndDate.UTC(),
		model.PromotionID,
		utcPtr(model.PromotionAppliedAt),
		model.CreatedAt.UTC(),
		model.UpdatedAt.UTC(),
	), nil
}

func PlanToModel(p *subscription.Plan) *models.PlanModel {
	return &models.PlanModel{
		ID:           p.ID(),
		Name:         p.Name(),
		Price:        p.Price(),
		DurationDays: p.DurationDays(),
		CreatedAt:    p.CreatedAt(),
	}
}

func PlanToDomain(model *models.PlanModel) *subscription.Plan {
	return subscription.ReconstructPlan(model.ID, model.Name, model.Price, model.DurationDays, model.CreatedAt.UTC())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
