package payment

import (
	"time"

	"github.com/shopspring/decimal"

	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/shared/biztime"
)

// FullRefundWindow is the inclusive period after payment during which the
// whole amount is returned.
const FullRefundWindow = 14 * 24 * time.Hour

// CalculateRefund returns the amount to refund for p when the subscription
// ending at subscriptionEnd is cancelled at now. A zero result means no refund.
//
// Inside the window the full amount is returned. Later, the unused share
// amount * max(0, whole days remaining) / durationDays, rounded to cents.
func CalculateRefund(p *Payment, subscriptionEnd time.Time, durationDays int, now time.Time) vo.Money {
	currency := p.Amount().Currency()
	if p.IsTrial() || !p.Status().IsSucceeded() || durationDays <= 0 {
		return vo.NewMoney(decimal.Zero, currency)
	}
	if now.Sub(p.CreatedAt()) <= FullRefundWindow {
		return p.Amount()
	}

	daysRemaining := biztime.WholeDaysBetween(now, subscriptionEnd)
	if daysRemaining <= 0 {
		return vo.NewMoney(decimal.Zero, currency)
	}
	amount := p.Amount().Amount().
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(durationDays))).
		Round(2)
	if !amount.IsPositive() {
		return vo.NewMoney(decimal.Zero, currency)
	}
	if amount.GreaterThan(p.Amount().Amount()) {
		return p.Amount()
	}
	return vo.NewMoney(amount, currency)
}
