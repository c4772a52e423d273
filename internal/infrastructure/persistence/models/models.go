// Package models holds the GORM row types of the renewal store.
package models

// All returns every model, in dependency order, for AutoMigrate in tests and dev.
func All() []any {
	return []any{
		&UserModel{},
		&PlanModel{},
		&SubscriptionModel{},
		&PaymentModel{},
		&PaymentChargeModel{},
		&RefundModel{},
		&PromotionModel{},
		&PromotionUsageModel{},
	}
}
