package valueobjects

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency is supplied.
const DefaultCurrency = "RUB"

// Money is a decimal amount with a currency, rounded to minor units.
type Money struct {
	amount   decimal.Decimal
	currency string
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{
		amount:   amount.Round(2),
		currency: currency,
	}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount) && m.currency == other.currency
}

// StringFixed renders the amount with two decimals, e.g. "100.00".
func (m Money) StringFixed() string {
	return m.amount.StringFixed(2)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.StringFixed(), m.currency)
}
