package subscription

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/shared/biztime"
)

type Subscription struct {
	id                 uint
	userID             uint
	planID             uint
	status             vo.SubscriptionStatus
	startDate          time.Time
	endDate            time.Time
	promotionID        *uint
	promotionAppliedAt *time.Time
	createdAt          time.Time
	updatedAt          time.Time
}

// NewPendingSubscription creates a subscription awaiting its first charge.
func NewPendingSubscription(userID, planID uint, durationDays int, now time.Time) (*Subscription, error) {
	if userID == 0 || planID == 0 {
		return nil, fmt.Errorf("user id and plan id are required")
	}
	if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}
	return &Subscription{
		userID:    userID,
		planID:    planID,
		status:    vo.StatusPendingPayment,
		startDate: now,
		endDate:   biztime.AddDays(now, durationDays),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// NewTrialSubscription creates an already active subscription lasting trialDays.
func NewTrialSubscription(userID, planID uint, trialDays int, now time.Time) (*Subscription, error) {
	sub, err := NewPendingSubscription(userID, planID, trialDays, now)
	if err != nil {
		return nil, err
	}
	sub.status = vo.StatusActive
	return sub, nil
}

func ReconstructSubscription(
	id, userID, planID uint,
	status vo.SubscriptionStatus,
	startDate, endDate time.Time,
	promotionID *uint,
	promotionAppliedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Subscription {
	return &Subscription{
		id:                 id,
		userID:             userID,
		planID:             planID,
		status:             status,
		startDate:          startDate,
		endDate:            endDate,
		promotionID:        promotionID,
		promotionAppliedAt: promotionAppliedAt,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

func (s *Subscription) ID() uint                       { return s.id }
func (s *Subscription) UserID() uint                   { return s.userID }
func (s *Subscription) PlanID() uint                   { return s.planID }
func (s *Subscription) Status() vo.SubscriptionStatus  { return s.status }
func (s *Subscription) StartDate() time.Time           { return s.startDate }
func (s *Subscription) EndDate() time.Time             { return s.endDate }
func (s *Subscription) PromotionID() *uint             { return s.promotionID }
func (s *Subscription) PromotionAppliedAt() *time.Time { return s.promotionAppliedAt }
func (s *Subscription) CreatedAt() time.Time           { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time           { return s.updatedAt }

func (s *Subscription) SetID(id uint) {
	s.id = id
}

// IsExtendedBeyond reports whether end_date already lies at or after the
// start of the UTC day following now, i.e. today's renewal is done.
func (s *Subscription) IsExtendedBeyond(now time.Time) bool {
	return !s.endDate.Before(biztime.StartOfNextDayUTC(now))
}

// PromotionAppliedOn reports whether bonus days were redeemed on now's UTC day.
func (s *Subscription) PromotionAppliedOn(now time.Time) bool {
	if s.promotionID == nil || s.promotionAppliedAt == nil {
		return false
	}
	return biztime.SameDayUTC(*s.promotionAppliedAt, now)
}

// Extend advances the paid period by durationDays. A lapsed period restarts at now.
// Callers must check IsExtendedBeyond first; repeated calls stack days.
func (s *Subscription) Extend(durationDays int, now time.Time) error {
	if durationDays <= 0 {
		return ErrInvalidDuration
	}
	if !s.status.CanTransitionTo(vo.StatusActive) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, vo.StatusActive)
	}
	if !s.endDate.After(now) {
		s.startDate = now
		s.endDate = biztime.AddDays(now, durationDays)
	} else {
		s.endDate = biztime.AddDays(s.endDate, durationDays)
	}
	s.status = vo.StatusActive
	s.updatedAt = now
	return nil
}

// Activate starts a fresh period at now. Used on the first successful charge.
func (s *Subscription) Activate(durationDays int, now time.Time) error {
	if durationDays <= 0 {
		return ErrInvalidDuration
	}
	if !s.status.CanTransitionTo(vo.StatusActive) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, vo.StatusActive)
	}
	s.startDate = now
	s.endDate = biztime.AddDays(now, durationDays)
	s.status = vo.StatusActive
	s.updatedAt = now
	return nil
}

func (s *Subscription) transition(target vo.SubscriptionStatus, now time.Time) error {
	if !s.status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, target)
	}
	s.status = target
	s.updatedAt = now
	return nil
}

// MarkCancelledWaiting records exhausted renewal attempts.
func (s *Subscription) MarkCancelledWaiting(now time.Time) error {
	return s.transition(vo.StatusCancelledWaiting, now)
}

// Cancel moves the subscription to cancelled. No-op when already cancelled.
func (s *Subscription) Cancel(now time.Time) error {
	if s.status == vo.StatusCancelled {
		return nil
	}
	return s.transition(vo.StatusCancelled, now)
}

// Expire retires a subscription that never became or stopped being payable.
func (s *Subscription) Expire(now time.Time) error {
	if s.status == vo.StatusExpired {
		return nil
	}
	return s.transition(vo.StatusExpired, now)
}

// FinalizeCancelledWaiting moves cancelled_waiting to cancelled.
// Returns false when the status changed in the meantime.
func (s *Subscription) FinalizeCancelledWaiting(now time.Time) bool {
	if s.status != vo.StatusCancelledWaiting {
		return false
	}
	s.status = vo.StatusCancelled
	s.updatedAt = now
	return true
}

// ApplyBonusDays pushes end_date by days and records the promotion.
func (s *Subscription) ApplyBonusDays(promotionID uint, days int, now time.Time) error {
	if !s.status.IsActive() {
		return ErrNotActive
	}
	if days < 0 {
		return fmt.Errorf("bonus days must not be negative")
	}
	s.endDate = biztime.AddDays(s.endDate, days)
	s.promotionID = &promotionID
	appliedAt := now
	s.promotionAppliedAt = &appliedAt
	s.updatedAt = now
	return nil
}

// EndAt cuts the paid period short at now. Only a refunded cancel does this.
func (s *Subscription) EndAt(now time.Time) {
	if now.After(s.startDate) && now.Before(s.endDate) {
		s.endDate = now
		s.updatedAt = now
	}
}
