package provider

import (
	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
)

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func newAmount(value decimal.Decimal, currency string) amount {
	return amount{Value: value.StringFixed(2), Currency: currency}
}

func (a amount) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type paymentMethod struct {
	Type  string `json:"type,omitempty"`
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

type createPaymentBody struct {
	Amount            amount            `json:"amount"`
	Capture           bool              `json:"capture"`
	Description       string            `json:"description,omitempty"`
	PaymentMethodID   string            `json:"payment_method_id,omitempty"`
	SavePaymentMethod bool              `json:"save_payment_method,omitempty"`
	Confirmation      *confirmation     `json:"confirmation,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type captureBody struct {
	Amount amount `json:"amount"`
}

type paymentResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Paid          bool           `json:"paid"`
	Amount        amount         `json:"amount"`
	Confirmation  *confirmation  `json:"confirmation,omitempty"`
	PaymentMethod *paymentMethod `json:"payment_method,omitempty"`
}

func (r *paymentResponse) toInfo() *paymentgateway.PaymentInfo {
	info := &paymentgateway.PaymentInfo{
		ID:       r.ID,
		Status:   r.Status,
		Paid:     r.Paid,
		Amount:   r.Amount.decimal(),
		Currency: r.Amount.Currency,
	}
	if r.Confirmation != nil {
		info.ConfirmationURL = r.Confirmation.ConfirmationURL
	}
	if r.PaymentMethod != nil {
		info.PaymentMethod = &paymentgateway.SavedPaymentMethod{
			ID:    r.PaymentMethod.ID,
			Saved: r.PaymentMethod.Saved,
		}
	}
	return info
}

type createRefundBody struct {
	PaymentID   string `json:"payment_id"`
	Amount      amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type refundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Amount    amount `json:"amount"`
}

func (r *refundResponse) toInfo() *paymentgateway.RefundInfo {
	return &paymentgateway.RefundInfo{
		ID:        r.ID,
		PaymentID: r.PaymentID,
		Status:    r.Status,
		Amount:    r.Amount.decimal(),
		Currency:  r.Amount.Currency,
	}
}

type errorResponse struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter,omitempty"`
}
