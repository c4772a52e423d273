package mappers

import (
	"fmt"

	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
)

func PaymentToModel(p *payment.Payment) *models.PaymentModel {
	return &models.PaymentModel{
		ID:                p.ID(),
		UserID:            p.UserID(),
		SubscriptionID:    p.SubscriptionID(),
		ProviderPaymentID: p.ProviderPaymentID(),
		Amount:            p.Amount().Amount(),
		Currency:          p.Amount().Currency(),
		Status:            p.Status().String(),
		PaymentMethod:     p.Method().String(),
		AttemptNumber:     p.AttemptNumber(),
		IdempotencyKey:    p.IdempotencyKey(),
		ConfirmationURL:   p.ConfirmationURL(),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}

func PaymentToDomain(model *models.PaymentModel) (*payment.Payment, error) {
	status, err := vo.ParsePaymentStatus(model.Status)
	if err != nil {
		return nil, err
	}
	method, err := vo.ParsePaymentMethod(model.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("payment %d: %w", model.ID, err)
	}
	return payment.ReconstructPayment(
		model.ID,
		model.UserID,
		model.SubscriptionID,
		model.ProviderPaymentID,
		vo.NewMoney(model.Amount, model.Currency),
		status,
		method,
		model.AttemptNumber,
		model.IdempotencyKey,
		model.ConfirmationURL,
		model.CreatedAt.UTC(),
		model.UpdatedAt.UTC(),
	), nil
}

func RefundToModel(r *payment.Refund) *models.RefundModel {
	return &models.RefundModel{
		ID:               r.ID(),
		PaymentID:        r.PaymentID(),
		ProviderRefundID: r.ProviderRefundID(),
		Amount:           r.Amount().Amount(),
		Currency:         r.Amount().Currency(),
		Status:           string(r.Status()),
		Reason:           r.Reason(),
		CreatedAt:        r.CreatedAt(),
	}
}

func RefundToDomain(model *models.RefundModel) *payment.Refund {
	return payment.ReconstructRefund(
		model.ID,
		model.PaymentID,
		model.ProviderRefundID,
		vo.NewMoney(model.Amount, model.Currency),
		payment.RefundStatus(model.Status),
		model.Reason,
		model.CreatedAt.UTC(),
	)
}

func ChargeToModel(c *payment.Charge) *models.PaymentChargeModel {
	return &models.PaymentChargeModel{
		ID:                c.ID(),
		PaymentID:         c.PaymentID(),
		AttemptNumber:     c.AttemptNumber(),
		IdempotencyKey:    c.IdempotencyKey(),
		ProviderPaymentID: c.ProviderPaymentID(),
		Status:            c.Status().String(),
		ProviderRefundID:  c.ProviderRefundID(),
		CreatedAt:         c.CreatedAt(),
		UpdatedAt:         c.UpdatedAt(),
	}
}

func ChargeToDomain(model *models.PaymentChargeModel) (*payment.Charge, error) {
	status, err := vo.ParsePaymentStatus(model.Status)
	if err != nil {
		return nil, fmt.Errorf("charge %d: %w", model.ID, err)
	}
	return payment.ReconstructCharge(
		model.ID,
		model.PaymentID,
		model.AttemptNumber,
		model.IdempotencyKey,
		model.ProviderPaymentID,
		status,
		model.ProviderRefundID,
		model.CreatedAt.UTC(),
		model.UpdatedAt.UTC(),
	), nil
}
