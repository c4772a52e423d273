package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanModel struct {
	ID           uint            `gorm:"primaryKey"`
	Name         string          `gorm:"uniqueIndex;size:128;not null"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DurationDays int             `gorm:"not null"`
	CreatedAt    time.Time       `gorm:"not null;autoCreateTime:false"`
}

func (PlanModel) TableName() string {
	return "plans"
}
