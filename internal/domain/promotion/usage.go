package promotion

import "time"

// Usage records one redemption; (user_id, promotion_id) is unique.
type Usage struct {
	id             uint
	userID         uint
	promotionID    uint
	subscriptionID *uint
	createdAt      time.Time
}

func NewUsage(userID, promotionID uint, subscriptionID *uint, now time.Time) *Usage {
	return &Usage{
		userID:         userID,
		promotionID:    promotionID,
		subscriptionID: subscriptionID,
		createdAt:      now,
	}
}

func (u *Usage) ID() uint              { return u.id }
func (u *Usage) UserID() uint          { return u.userID }
func (u *Usage) PromotionID() uint     { return u.promotionID }
func (u *Usage) SubscriptionID() *uint { return u.subscriptionID }
func (u *Usage) CreatedAt() time.Time  { return u.createdAt }

func (u *Usage) SetID(id uint) {
	u.id = id
}
