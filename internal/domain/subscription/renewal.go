package subscription

import (
	"time"

	vo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
)

// PaymentReaction is how a subscription responds to a succeeded payment.
type PaymentReaction string

const (
	ReactionActivateFirstCharge PaymentReaction = "activate_first_charge"
	ReactionReactivate          PaymentReaction = "reactivate"
	ReactionExtend              PaymentReaction = "extend"
	ReactionNone                PaymentReaction = "none"
)

// ReactionToSucceededPayment is the single state machine used by both the
// webhook reconciler and the retry driver.
//
//	pending_payment                          -> activate_first_charge
//	cancelled | cancelled_waiting (no token) -> reactivate
//	active, not yet extended today           -> extend
//	anything else, or a card change          -> none
func (s *Subscription) ReactionToSucceededPayment(isCardChange bool, now time.Time) PaymentReaction {
	if isCardChange {
		return ReactionNone
	}
	switch s.status {
	case vo.StatusPendingPayment:
		return ReactionActivateFirstCharge
	case vo.StatusCancelled, vo.StatusCancelledWaiting:
		return ReactionReactivate
	case vo.StatusActive:
		if s.IsExtendedBeyond(now) {
			return ReactionNone
		}
		return ReactionExtend
	default:
		return ReactionNone
	}
}

// ApplyPaymentReaction mutates the subscription according to reaction.
func (s *Subscription) ApplyPaymentReaction(reaction PaymentReaction, durationDays int, now time.Time) error {
	switch reaction {
	case ReactionActivateFirstCharge:
		return s.Activate(durationDays, now)
	case ReactionReactivate, ReactionExtend:
		return s.Extend(durationDays, now)
	default:
		return nil
	}
}
