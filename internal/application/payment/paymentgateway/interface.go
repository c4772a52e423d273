package paymentgateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentGateway is the synchronous facade over the payment provider.
// Every mutating call carries a caller-supplied idempotency key.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*PaymentInfo, error)
	CapturePayment(ctx context.Context, providerPaymentID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentInfo, error)
	CancelPayment(ctx context.Context, providerPaymentID, idempotencyKey string) (*PaymentInfo, error)
	GetPayment(ctx context.Context, providerPaymentID string) (*PaymentInfo, error)
	CreateRefund(ctx context.Context, req CreateRefundRequest) (*RefundInfo, error)
}

// CreatePaymentRequest describes a one-stage (Capture) or two-stage charge.
// With PaymentMethodID set the charge is bound to a saved credential;
// otherwise the provider returns a redirect confirmation URL.
type CreatePaymentRequest struct {
	Amount            decimal.Decimal
	Currency          string
	Description       string
	IdempotencyKey    string
	Capture           bool
	PaymentMethodID   string
	SavePaymentMethod bool
	ReturnURL         string
	Metadata          map[string]string
}

type SavedPaymentMethod struct {
	ID    string
	Saved bool
}

type PaymentInfo struct {
	ID              string
	Status          string
	Paid            bool
	Amount          decimal.Decimal
	Currency        string
	ConfirmationURL string
	PaymentMethod   *SavedPaymentMethod
}

// SavedMethodID returns the credential id when the payer consented to saving it.
func (p *PaymentInfo) SavedMethodID() string {
	if p == nil || p.PaymentMethod == nil || !p.PaymentMethod.Saved {
		return ""
	}
	return p.PaymentMethod.ID
}

type CreateRefundRequest struct {
	ProviderPaymentID string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	IdempotencyKey    string
}

type RefundInfo struct {
	ID        string
	PaymentID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
}
