package payment

import (
	"errors"
	"fmt"
	"time"

	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
)

var (
	ErrChargeNotSucceeded = errors.New("charge has not succeeded")
	ErrChargeRefunded     = errors.New("charge already refunded")
)

// Charge is one provider charge opened for a payment. Rows are never
// removed, so a late event for a superseded charge still finds its payment.
type Charge struct {
	id                uint
	paymentID         uint
	attemptNumber     int
	idempotencyKey    string
	providerPaymentID *string
	status            vo.PaymentStatus
	providerRefundID  *string
	createdAt         time.Time
	updatedAt         time.Time
}

// NewCharge records the intent to create a provider charge under key,
// before the provider has answered.
func NewCharge(paymentID uint, attempt int, idempotencyKey string, now time.Time) (*Charge, error) {
	if paymentID == 0 {
		return nil, fmt.Errorf("payment ID is required")
	}
	if attempt < 1 {
		return nil, fmt.Errorf("attempt must be positive")
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	return &Charge{
		paymentID:      paymentID,
		attemptNumber:  attempt,
		idempotencyKey: idempotencyKey,
		status:         vo.PaymentStatusPending,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

func ReconstructCharge(
	id, paymentID uint,
	attemptNumber int,
	idempotencyKey string,
	providerPaymentID *string,
	status vo.PaymentStatus,
	providerRefundID *string,
	createdAt, updatedAt time.Time,
) *Charge {
	return &Charge{
		id:                id,
		paymentID:         paymentID,
		attemptNumber:     attemptNumber,
		idempotencyKey:    idempotencyKey,
		providerPaymentID: providerPaymentID,
		status:            status,
		providerRefundID:  providerRefundID,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (c *Charge) ID() uint                   { return c.id }
func (c *Charge) PaymentID() uint            { return c.paymentID }
func (c *Charge) AttemptNumber() int         { return c.attemptNumber }
func (c *Charge) IdempotencyKey() string     { return c.idempotencyKey }
func (c *Charge) ProviderPaymentID() *string { return c.providerPaymentID }
func (c *Charge) Status() vo.PaymentStatus   { return c.status }
func (c *Charge) ProviderRefundID() *string  { return c.providerRefundID }
func (c *Charge) CreatedAt() time.Time       { return c.createdAt }
func (c *Charge) UpdatedAt() time.Time       { return c.updatedAt }

func (c *Charge) SetID(id uint) {
	c.id = id
}

// HasProviderPayment reports whether the provider ever answered the create.
func (c *Charge) HasProviderPayment() bool {
	return c.providerPaymentID != nil && *c.providerPaymentID != ""
}

// Attach records the provider id returned for this charge's key.
func (c *Charge) Attach(providerPaymentID string, now time.Time) {
	if c.HasProviderPayment() {
		return
	}
	c.providerPaymentID = &providerPaymentID
	c.updatedAt = now
}

// ApplyStatus records a provider-reported status. Succeeded and cancelled
// are terminal at the provider and never change afterwards.
func (c *Charge) ApplyStatus(status vo.PaymentStatus, now time.Time) bool {
	if c.status == status || c.IsTerminal() {
		return false
	}
	c.status = status
	c.updatedAt = now
	return true
}

func (c *Charge) IsTerminal() bool {
	return c.status.IsSucceeded() || c.status == vo.PaymentStatusCancelled
}

// CanBeReplacedBy reports whether attempt may open a new charge. Only a
// charge the provider reported cancelled is known to have taken no money.
func (c *Charge) CanBeReplacedBy(attempt int) bool {
	return c.status == vo.PaymentStatusCancelled && attempt > c.attemptNumber
}

func (c *Charge) IsRefunded() bool {
	return c.providerRefundID != nil && *c.providerRefundID != ""
}

// MarkRefunded records the provider refund that returned this charge's money.
func (c *Charge) MarkRefunded(providerRefundID string, now time.Time) error {
	if !c.status.IsSucceeded() || !c.HasProviderPayment() {
		return ErrChargeNotSucceeded
	}
	if c.IsRefunded() {
		return ErrChargeRefunded
	}
	c.providerRefundID = &providerRefundID
	c.updatedAt = now
	return nil
}
