package payment

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusCanceled  RefundStatus = "canceled"
)

// Refund is owned by its payment; at most one exists per payment.
type Refund struct {
	id               uint
	paymentID        uint
	providerRefundID string
	amount           vo.Money
	status           RefundStatus
	reason           *string
	createdAt        time.Time
}

func NewRefund(paymentID uint, providerRefundID string, amount vo.Money, status RefundStatus, reason string, now time.Time) (*Refund, error) {
	if paymentID == 0 {
		return nil, fmt.Errorf("payment ID is required")
	}
	if providerRefundID == "" {
		return nil, fmt.Errorf("provider refund ID is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive")
	}
	if status == "" {
		status = RefundStatusPending
	}
	r := &Refund{
		paymentID:        paymentID,
		providerRefundID: providerRefundID,
		amount:           amount,
		status:           status,
		createdAt:        now,
	}
	if reason != "" {
		r.reason = &reason
	}
	return r, nil
}

func ReconstructRefund(id, paymentID uint, providerRefundID string, amount vo.Money, status RefundStatus, reason *string, createdAt time.Time) *Refund {
	return &Refund{
		id:               id,
		paymentID:        paymentID,
		providerRefundID: providerRefundID,
		amount:           amount,
		status:           status,
		reason:           reason,
		createdAt:        createdAt,
	}
}

func (r *Refund) ID() uint                 { return r.id }
func (r *Refund) PaymentID() uint          { return r.paymentID }
func (r *Refund) ProviderRefundID() string { return r.providerRefundID }
func (r *Refund) Amount() vo.Money         { return r.amount }
func (r *Refund) Status() RefundStatus     { return r.status }
func (r *Refund) Reason() *string          { return r.reason }
func (r *Refund) CreatedAt() time.Time     { return r.createdAt }

func (r *Refund) SetID(id uint) {
	r.id = id
}

// UpdateStatus applies a provider-reported refund status. Returns false when unchanged.
func (r *Refund) UpdateStatus(status RefundStatus) bool {
	if status == "" || r.status == status || r.status == RefundStatusSucceeded {
		return false
	}
	r.status = status
	return true
}
