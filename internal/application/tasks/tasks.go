// Package tasks names the background tasks and the port used to enqueue them.
package tasks

import (
	"context"
	"time"
)

const (
	TypeProcessSubscription = "auto_payment:process_subscription"
	TypeRetryPayment        = "auto_payment:retry_payment"
	TypeRefundPayment       = "payment:refund"
)

type ProcessSubscriptionPayload struct {
	SubscriptionID uint `json:"subscription_id"`
}

type RetryPaymentPayload struct {
	PaymentID uint `json:"payment_id"`
	Attempt   int  `json:"attempt"`
}

// RefundPaymentPayload refunds Amount, or the whole payment when Amount is empty.
// With ChargeID set, the whole amount of that provider charge is returned instead.
type RefundPaymentPayload struct {
	PaymentID uint   `json:"payment_id"`
	ChargeID  uint   `json:"charge_id,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Dispatcher enqueues durable background tasks.
type Dispatcher interface {
	DispatchProcessSubscription(ctx context.Context, subscriptionID uint) error
	DispatchRetryPayment(ctx context.Context, paymentID uint, attempt int, delay time.Duration) error
	DispatchRefundPayment(ctx context.Context, payload RefundPaymentPayload) error
}
