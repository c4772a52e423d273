package models

import "time"

type PromotionModel struct {
	ID             uint      `gorm:"primaryKey"`
	Code           string    `gorm:"uniqueIndex;size:64;not null"`
	Type           string    `gorm:"size:32;not null"`
	Value          int       `gorm:"not null"`
	ValidFrom      time.Time `gorm:"not null"`
	ValidUntil     *time.Time
	MaxUses        *int
	CurrentUses    int       `gorm:"not null;default:0"`
	IsActive       bool      `gorm:"not null"`
	AssignedUserID *uint     `gorm:"index"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
}

func (PromotionModel) TableName() string {
	return "promotions"
}

type PromotionUsageModel struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"not null;uniqueIndex:uk_promotion_usages_user_promotion,priority:1"`
	PromotionID    uint      `gorm:"not null;uniqueIndex:uk_promotion_usages_user_promotion,priority:2"`
	SubscriptionID *uint     `gorm:"index"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
}

func (PromotionUsageModel) TableName() string {
	return "promotion_usages"
}
