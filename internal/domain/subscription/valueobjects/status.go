package valueobjects

import "fmt"

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusPendingPayment   SubscriptionStatus = "pending_payment"
	StatusActive           SubscriptionStatus = "active"
	StatusCancelled        SubscriptionStatus = "cancelled"
	StatusCancelledWaiting SubscriptionStatus = "cancelled_waiting"
	StatusExpired          SubscriptionStatus = "expired"
)

var validStatuses = map[SubscriptionStatus]bool{
	StatusPendingPayment:   true,
	StatusActive:           true,
	StatusCancelled:        true,
	StatusCancelledWaiting: true,
	StatusExpired:          true,
}

// statusTransitions lists allowed targets. active -> active is a renewal.
var statusTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusPendingPayment: {
		StatusActive,
		StatusCancelled,
		StatusExpired,
	},
	StatusActive: {
		StatusActive,
		StatusCancelled,
		StatusCancelledWaiting,
		StatusExpired,
	},
	StatusCancelledWaiting: {
		StatusActive,
		StatusCancelled,
	},
	StatusCancelled: {
		StatusActive,
	},
	StatusExpired: {},
}

// ParseStatus validates a persisted status value.
func ParseStatus(value string) (SubscriptionStatus, error) {
	s := SubscriptionStatus(value)
	if !validStatuses[s] {
		return "", fmt.Errorf("invalid subscription status: %s", value)
	}
	return s, nil
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) IsActive() bool {
	return s == StatusActive
}

// IsCancelled covers both the final and the waiting cancellation states.
func (s SubscriptionStatus) IsCancelled() bool {
	return s == StatusCancelled || s == StatusCancelledWaiting
}

func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
