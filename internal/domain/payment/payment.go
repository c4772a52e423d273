package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
)

// TrialProviderPaymentID marks the synthetic payment backing a trial.
const TrialProviderPaymentID = "trial_period"

var ErrAlreadySucceeded = errors.New("payment already succeeded")

type Payment struct {
	id                uint
	userID            uint
	subscriptionID    uint
	providerPaymentID *string
	amount            vo.Money
	status            vo.PaymentStatus
	method            vo.PaymentMethod
	attemptNumber     int
	idempotencyKey    string
	confirmationURL   *string
	createdAt         time.Time
	updatedAt         time.Time
}

// NewPayment creates a pending payment that has not reached the provider yet.
func NewPayment(userID, subscriptionID uint, amount vo.Money, method vo.PaymentMethod, idempotencyKey string, now time.Time) (*Payment, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if subscriptionID == 0 {
		return nil, fmt.Errorf("subscription ID is required")
	}
	if idempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if amount.Amount().IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return &Payment{
		userID:         userID,
		subscriptionID: subscriptionID,
		amount:         amount,
		status:         vo.PaymentStatusPending,
		method:         method,
		attemptNumber:  1,
		idempotencyKey: idempotencyKey,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// NewTrialPayment creates the zero-amount succeeded payment backing a trial.
func NewTrialPayment(userID, subscriptionID uint, currency string, now time.Time) (*Payment, error) {
	p, err := NewPayment(userID, subscriptionID, vo.NewMoney(decimal.Zero, currency), vo.PaymentMethodTrial, TrialKey(userID), now)
	if err != nil {
		return nil, err
	}
	providerID := TrialProviderPaymentID
	p.providerPaymentID = &providerID
	p.status = vo.PaymentStatusSucceeded
	return p, nil
}

func ReconstructPayment(
	id, userID, subscriptionID uint,
	providerPaymentID *string,
	amount vo.Money,
	status vo.PaymentStatus,
	method vo.PaymentMethod,
	attemptNumber int,
	idempotencyKey string,
	confirmationURL *string,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:                id,
		userID:            userID,
		subscriptionID:    subscriptionID,
		providerPaymentID: providerPaymentID,
		amount:            amount,
		status:            status,
		method:            method,
		attemptNumber:     attemptNumber,
		idempotencyKey:    idempotencyKey,
		confirmationURL:   confirmationURL,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (p *Payment) ID() uint                   { return p.id }
func (p *Payment) UserID() uint               { return p.userID }
func (p *Payment) SubscriptionID() uint       { return p.subscriptionID }
func (p *Payment) ProviderPaymentID() *string { return p.providerPaymentID }
func (p *Payment) Amount() vo.Money           { return p.amount }
func (p *Payment) Status() vo.PaymentStatus   { return p.status }
func (p *Payment) Method() vo.PaymentMethod   { return p.method }
func (p *Payment) AttemptNumber() int         { return p.attemptNumber }
func (p *Payment) IdempotencyKey() string     { return p.idempotencyKey }
func (p *Payment) ConfirmationURL() *string   { return p.confirmationURL }
func (p *Payment) CreatedAt() time.Time       { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time       { return p.updatedAt }

func (p *Payment) SetID(id uint) {
	p.id = id
}

// IsTrial reports whether this is the synthetic trial payment.
func (p *Payment) IsTrial() bool {
	return p.providerPaymentID != nil && *p.providerPaymentID == TrialProviderPaymentID
}

// HasProviderPayment reports whether the provider charge id is known.
func (p *Payment) HasProviderPayment() bool {
	return p.providerPaymentID != nil && *p.providerPaymentID != ""
}

// AttachProviderPayment records the provider charge created for this row.
func (p *Payment) AttachProviderPayment(providerPaymentID, confirmationURL string, now time.Time) {
	p.providerPaymentID = &providerPaymentID
	if confirmationURL != "" {
		p.confirmationURL = &confirmationURL
	}
	p.updatedAt = now
}

// AdoptCharge points the row at an earlier charge of the same payment
// that settled after a later attempt had replaced it.
func (p *Payment) AdoptCharge(providerPaymentID string, now time.Time) error {
	if p.status.IsSucceeded() {
		return ErrAlreadySucceeded
	}
	p.providerPaymentID = &providerPaymentID
	p.updatedAt = now
	return nil
}

// ApplyStatus reconciles a provider-reported status. A succeeded payment
// never leaves succeeded; the return value reports whether anything changed.
func (p *Payment) ApplyStatus(status vo.PaymentStatus, now time.Time) bool {
	if p.status == status {
		return false
	}
	if p.status.IsSucceeded() {
		return false
	}
	p.status = status
	p.updatedAt = now
	return true
}

// MarkFailed records a failed attempt on this row.
func (p *Payment) MarkFailed(attempt int, now time.Time) error {
	if p.status.IsSucceeded() {
		return ErrAlreadySucceeded
	}
	p.status = vo.PaymentStatusFailed
	if attempt > 0 {
		p.attemptNumber = attempt
	}
	p.updatedAt = now
	return nil
}

// BeginAttempt points the row at a new charge opened by attempt. The
// previous charge id stays on its Charge row.
func (p *Payment) BeginAttempt(attempt int, now time.Time) error {
	if p.status.IsSucceeded() {
		return ErrAlreadySucceeded
	}
	p.attemptNumber = attempt
	p.status = vo.PaymentStatusPending
	p.providerPaymentID = nil
	p.updatedAt = now
	return nil
}
