package valueobjects

import "fmt"

// PaymentMethod tags why a payment was created.
type PaymentMethod string

const (
	PaymentMethodManual      PaymentMethod = "manual"
	PaymentMethodAutoPayment PaymentMethod = "auto_payment"
	PaymentMethodCardChange  PaymentMethod = "card_change"
	PaymentMethodTrial       PaymentMethod = "trial"
)

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(value)
	switch m {
	case PaymentMethodManual, PaymentMethodAutoPayment, PaymentMethodCardChange, PaymentMethodTrial:
		return m, nil
	default:
		return "", fmt.Errorf("invalid payment method: %s", value)
	}
}

func (m PaymentMethod) IsCardChange() bool {
	return m == PaymentMethodCardChange
}

func (m PaymentMethod) String() string {
	return string(m)
}
