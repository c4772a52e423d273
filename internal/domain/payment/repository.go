package payment

import "context"

// Repository returns (nil, nil) from Get* methods when the row does not exist.
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uint) (*Payment, error)
	// GetByIDForUpdate reads the row under SELECT ... FOR UPDATE.
	GetByIDForUpdate(ctx context.Context, id uint) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Payment, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	// GetLatestRefundable returns the newest succeeded non-trial payment of a subscription.
	GetLatestRefundable(ctx context.Context, subscriptionID uint) (*Payment, error)

	// Charges belong to their payment; callers hold the payment row lock
	// when they change them.
	CreateCharge(ctx context.Context, charge *Charge) error
	UpdateCharge(ctx context.Context, charge *Charge) error
	GetChargeByID(ctx context.Context, id uint) (*Charge, error)
	GetChargeByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Charge, error)
	// GetLatestCharge returns the most recently opened charge of a payment.
	GetLatestCharge(ctx context.Context, paymentID uint) (*Charge, error)
	ListCharges(ctx context.Context, paymentID uint) ([]*Charge, error)
}

type RefundRepository interface {
	Create(ctx context.Context, refund *Refund) error
	Update(ctx context.Context, refund *Refund) error
	GetByPaymentID(ctx context.Context, paymentID uint) (*Refund, error)
	GetByProviderRefundID(ctx context.Context, providerRefundID string) (*Refund, error)
}
