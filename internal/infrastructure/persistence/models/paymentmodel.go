package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentModel struct {
	ID                uint            `gorm:"primaryKey"`
	UserID            uint            `gorm:"index;not null"`
	SubscriptionID    uint            `gorm:"index;not null"`
	ProviderPaymentID *string         `gorm:"uniqueIndex;size:128"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency          string          `gorm:"size:10;not null"`
	Status            string          `gorm:"size:32;not null;index"`
	PaymentMethod     string          `gorm:"size:32;not null"`
	AttemptNumber     int             `gorm:"not null;default:1"`
	IdempotencyKey    string          `gorm:"uniqueIndex;size:128;not null"`
	ConfirmationURL   *string         `gorm:"type:text"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime:false"`
}

func (PaymentModel) TableName() string {
	return "payments"
}

type RefundModel struct {
	ID               uint            `gorm:"primaryKey"`
	PaymentID        uint            `gorm:"uniqueIndex;not null"`
	ProviderRefundID string          `gorm:"uniqueIndex;size:128;not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency         string          `gorm:"size:10;not null"`
	Status           string          `gorm:"size:32;not null"`
	Reason           *string         `gorm:"size:255"`
	CreatedAt        time.Time       `gorm:"not null;autoCreateTime:false"`
}

func (RefundModel) TableName() string {
	return "refunds"
}

type PaymentChargeModel struct {
	ID                uint      `gorm:"primaryKey"`
	PaymentID         uint      `gorm:"index;not null"`
	AttemptNumber     int       `gorm:"not null"`
	IdempotencyKey    string    `gorm:"uniqueIndex;size:160;not null"`
	ProviderPaymentID *string   `gorm:"uniqueIndex;size:128"`
	Status            string    `gorm:"size:32;not null"`
	ProviderRefundID  *string   `gorm:"size:128"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (PaymentChargeModel) TableName() string {
	return "payment_charges"
}
