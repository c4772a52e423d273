package subscription

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid subscription status transition")
	ErrNotActive         = errors.New("subscription is not active")
	ErrInvalidDuration   = errors.New("duration days must be positive")
)
