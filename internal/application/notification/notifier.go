// Package notification defines the fire-and-forget user notification port.
package notification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindRenewalSucceeded      Kind = "renewal_succeeded"
	KindRetriesExhausted      Kind = "retries_exhausted"
	KindManualPaymentRequired Kind = "manual_payment_required"
	KindPromotionApplied      Kind = "promotion_applied"
	KindSubscriptionActivated Kind = "subscription_activated"
	KindRefundIssued          Kind = "refund_issued"
)

type Notification struct {
	Kind            Kind
	UserID          uint
	SubscriptionID  uint
	PaymentID       uint
	Amount          decimal.Decimal
	Currency        string
	EndDate         time.Time
	ConfirmationURL string
	PromotionCode   string
	BonusDays       int
}

// Notifier delivers a notification. Callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
