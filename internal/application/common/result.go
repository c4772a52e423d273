// Package common holds types shared by every use case package.
package common

// Skip and outcome reasons reported in Result.Reason.
const (
	ReasonSubscriptionCancelled = "subscription_cancelled"
	ReasonAlreadyExtended       = "already_extended"
	ReasonPromotionAppliedToday = "promotion_applied_today"
	ReasonPaymentExists         = "payment_exists"
	ReasonStaleAttempt          = "stale_attempt"
	ReasonAlreadyDone           = "already_done"
	ReasonPending               = "pending"
	ReasonRenewed               = "renewed"
	ReasonRetryScheduled        = "retry_scheduled"
	ReasonAttemptsExhausted     = "attempts_exhausted"
	ReasonNoSavedPaymentMethod  = "no_saved_payment_method"
	ReasonUnrelated             = "unrelated"
	ReasonIgnored               = "ignored"
	ReasonDuplicateCharge       = "duplicate_charge"
)

// Result is the structured outcome returned by renewal operations.
// Guard skips are successes with Skipped set.
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	IDs             []uint `json:"ids,omitempty"`
	Skipped         bool   `json:"skipped,omitempty"`
	Final           bool   `json:"final,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

func Succeeded(message string, ids ...uint) *Result {
	return &Result{Success: true, Message: message, IDs: ids}
}

func Skipped(reason string, ids ...uint) *Result {
	return &Result{Success: true, Skipped: true, Reason: reason, Message: "skipped: " + reason, IDs: ids}
}

func Finished(reason, message string, ids ...uint) *Result {
	return &Result{Success: true, Final: true, Reason: reason, Message: message, IDs: ids}
}

func Failed(reason, message string, ids ...uint) *Result {
	return &Result{Success: false, Reason: reason, Message: message, IDs: ids}
}
