package payment

import (
	"fmt"
	"time"

	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// AutoPaymentKey is the per-subscription, per-UTC-day renewal key.
func AutoPaymentKey(subscriptionID uint, now time.Time) string {
	return fmt.Sprintf("auto_payment_%d_%s", subscriptionID, biztime.DateKey(now))
}

// AttemptKey derives the provider idempotency key for a retry attempt.
// Attempt 1 reuses the base key so the processor and the first retry collapse.
func AttemptKey(baseKey string, attempt int) string {
	if attempt <= 1 {
		return baseKey
	}
	return fmt.Sprintf("%s_attempt_%d", baseKey, attempt)
}

func TrialKey(userID uint) string {
	return fmt.Sprintf("trial_%d", userID)
}

func SubscriptionPaymentKey(subscriptionID uint) string {
	return fmt.Sprintf("subscription_payment_%d", subscriptionID)
}

func CardChangeKey(userID uint, nonce string) string {
	return fmt.Sprintf("card_change_%d_%s", userID, nonce)
}
