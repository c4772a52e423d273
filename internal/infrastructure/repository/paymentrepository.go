package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/shared/db"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	model := mappers.PaymentToModel(p)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	// Write back the auto-generated ID to the domain object
	p.SetID(model.ID)

	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	model := mappers.PaymentToModel(p)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PaymentModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"provider_payment_id": model.ProviderPaymentID,
			"status":              model.Status,
			"attempt_number":      model.AttemptNumber,
			"confirmation_url":    model.ConfirmationURL,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}

	// Note: RowsAffected may be 0 when updated values are identical to existing values.

	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("id = ?", id))
}

func (r *PaymentRepository) GetByIDForUpdate(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Scopes(db.ForUpdate()).Where("id = ?", id))
}

func (r *PaymentRepository) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("provider_payment_id = ?", providerPaymentID))
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("idempotency_key = ?", key))
}

func (r *PaymentRepository) GetLatestRefundable(ctx context.Context, subscriptionID uint) (*payment.Payment, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).
		Where("subscription_id = ? AND status = ?", subscriptionID, vo.PaymentStatusSucceeded).
		Where("payment_method <> ?", vo.PaymentMethodTrial).
		Where("(provider_payment_id IS NULL OR provider_payment_id <> ?)", payment.TrialProviderPaymentID).
		Order("created_at DESC, id DESC"))
}

func (r *PaymentRepository) first(query *gorm.DB) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return mappers.PaymentToDomain(&model)
}

func (r *PaymentRepository) CreateCharge(ctx context.Context, c *payment.Charge) error {
	model := mappers.ChargeToModel(c)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create payment charge: %w", err)
	}
	c.SetID(model.ID)
	return nil
}

func (r *PaymentRepository) UpdateCharge(ctx context.Context, c *payment.Charge) error {
	model := mappers.ChargeToModel(c)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.PaymentChargeModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"provider_payment_id": model.ProviderPaymentID,
			"status":              model.Status,
			"provider_refund_id":  model.ProviderRefundID,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment charge: %w", result.Error)
	}
	return nil
}

func (r *PaymentRepository) GetChargeByID(ctx context.Context, id uint) (*payment.Charge, error) {
	return r.firstCharge(db.GetTxFromContext(ctx, r.db).Where("id = ?", id))
}

func (r *PaymentRepository) GetChargeByProviderPaymentID(ctx context.Context, providerPaymentID string) (*payment.Charge, error) {
	return r.firstCharge(db.GetTxFromContext(ctx, r.db).Where("provider_payment_id = ?", providerPaymentID))
}

func (r *PaymentRepository) GetLatestCharge(ctx context.Context, paymentID uint) (*payment.Charge, error) {
	return r.firstCharge(db.GetTxFromContext(ctx, r.db).
		Where("payment_id = ?", paymentID).
		Order("attempt_number DESC, id DESC"))
}

func (r *PaymentRepository) ListCharges(ctx context.Context, paymentID uint) ([]*payment.Charge, error) {
	var rows []models.PaymentChargeModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("payment_id = ?", paymentID).
		Order("attempt_number ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment charges: %w", err)
	}

	charges := make([]*payment.Charge, 0, len(rows))
	for i := range rows {
		c, err := mappers.ChargeToDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, nil
}

func (r *PaymentRepository) firstCharge(query *gorm.DB) (*payment.Charge, error) {
	var model models.PaymentChargeModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment charge: %w", err)
	}
	return mappers.ChargeToDomain(&model)
}

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, refund *payment.Refund) error {
	model := mappers.RefundToModel(refund)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	refund.SetID(model.ID)
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, refund *payment.Refund) error {
	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.RefundModel{}).
		Where("id = ?", refund.ID()).
		Update("status", string(refund.Status()))
	if result.Error != nil {
		return fmt.Errorf("failed to update refund: %w", result.Error)
	}
	return nil
}

func (r *RefundRepository) GetByPaymentID(ctx context.Context, paymentID uint) (*payment.Refund, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("payment_id = ?", paymentID))
}

func (r *RefundRepository) GetByProviderRefundID(ctx context.Context, providerRefundID string) (*payment.Refund, error) {
	return r.first(db.GetTxFromContext(ctx, r.db).Where("provider_refund_id = ?", providerRefundID))
}

func (r *RefundRepository) first(query *gorm.DB) (*payment.Refund, error) {
	var model models.RefundModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	return mappers.RefundToDomain(&model), nil
}
