package models

import "time"

type UserModel struct {
	ID                   uint      `gorm:"primaryKey"`
	ExternalID           string    `gorm:"uniqueIndex;size:64;not null"`
	SavedPaymentMethodID *string   `gorm:"size:128"`
	CreatedAt            time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (UserModel) TableName() string {
	return "users"
}
