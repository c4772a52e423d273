package models

import "time"

type SubscriptionModel struct {
	ID                 uint      `gorm:"primaryKey"`
	UserID             uint      `gorm:"index;not null"`
	PlanID             uint      `gorm:"index;not null"`
	Status             string    `gorm:"size:32;not null;index:idx_subscriptions_status_end_date,priority:1"`
	StartDate          time.Time `gorm:"not null"`
	EndDate            time.Time `gorm:"not null;index:idx_subscriptions_status_end_date,priority:2"`
	PromotionID        *uint     `gorm:"index"`
	PromotionAppliedAt *time.Time
	CreatedAt          time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (SubscriptionModel) TableName() string {
	return "subscriptions"
}
