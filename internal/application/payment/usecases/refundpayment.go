package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// RefundPaymentCommand refunds Amount, or the whole payment when Amount is nil.
// ChargeID selects a duplicate provider charge of the payment to return in full.
type RefundPaymentCommand struct {
	PaymentID uint
	ChargeID  uint
	Amount    *decimal.Decimal
	Reason    string
}

// RefundPaymentUseCase issues at most one provider refund per payment.
type RefundPaymentUseCase struct {
	txManager   *db.TransactionManager
	paymentRepo payment.Repository
	refundRepo  payment.RefundRepository
	gateway     paymentgateway.PaymentGateway
	notifier    notification.Notifier
	clock       biztime.Clock
	logger      logger.Interface
}

func NewRefundPaymentUseCase(
	txManager *db.TransactionManager,
	paymentRepo payment.Repository,
	refundRepo payment.RefundRepository,
	gateway paymentgateway.PaymentGateway,
	notifier notification.Notifier,
	clock biztime.Clock,
	logger logger.Interface,
) *RefundPaymentUseCase {
	return &RefundPaymentUseCase{
		txManager:   txManager,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		gateway:     gateway,
		notifier:    notifier,
		clock:       clock,
		logger:      logger,
	}
}

// Execute holds the payment row lock across the provider call so two
// concurrent refunds of one payment cannot both reach the provider.
func (uc *RefundPaymentUseCase) Execute(ctx context.Context, cmd RefundPaymentCommand) (*common.Result, error) {
	if cmd.ChargeID != 0 {
		return uc.refundCharge(ctx, cmd)
	}
	uc.logger.Infow("refunding payment", "payment_id", cmd.PaymentID, "reason", cmd.Reason)

	var refund *payment.Refund
	var p *payment.Payment

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		p, err = uc.paymentRepo.GetByIDForUpdate(txCtx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperrors.NewNotFoundError("payment not found", fmt.Sprintf("payment_id=%d", cmd.PaymentID))
		}
		if p.IsTrial() {
			return apperrors.NewValidationError("trial payments are not refundable")
		}
		if !p.Status().IsSucceeded() || !p.HasProviderPayment() {
			return apperrors.NewValidationError("only succeeded payments can be refunded", string(p.Status()))
		}

		existing, err := uc.refundRepo.GetByPaymentID(txCtx, p.ID())
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.NewConflictError("payment already refunded", fmt.Sprintf("refund_id=%d", existing.ID()))
		}

		amount := p.Amount()
		if cmd.Amount != nil {
			amount = vo.NewMoney(*cmd.Amount, p.Amount().Currency())
		}
		if !amount.IsPositive() {
			return apperrors.NewValidationError("refund amount must be positive")
		}
		if amount.Amount().GreaterThan(p.Amount().Amount()) {
			return apperrors.NewValidationError("refund amount exceeds payment amount")
		}

		info, err := uc.gateway.CreateRefund(ctx, paymentgateway.CreateRefundRequest{
			ProviderPaymentID: *p.ProviderPaymentID(),
			Amount:            amount.Amount(),
			Currency:          amount.Currency(),
			Description:       cmd.Reason,
			IdempotencyKey:    uuid.NewString(),
		})
		if err != nil {
			uc.logger.Warnw("provider refund failed", "payment_id", p.ID(), "error", err)
			return fmt.Errorf("create provider refund: %w", err)
		}

		refund, err = payment.NewRefund(p.ID(), info.ID, amount, payment.RefundStatus(info.Status), cmd.Reason, uc.clock.Now())
		if err != nil {
			return err
		}
		if err := uc.refundRepo.Create(txCtx, refund); err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.NewConflictError("payment already refunded")
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to refund payment", "payment_id", cmd.PaymentID, "error", err)
		}
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, notification.Notification{
		Kind:           notification.KindRefundIssued,
		UserID:         p.UserID(),
		SubscriptionID: p.SubscriptionID(),
		PaymentID:      p.ID(),
		Amount:         refund.Amount().Amount(),
		Currency:       refund.Amount().Currency(),
	}); err != nil {
		uc.logger.Warnw("failed to send refund notification", "payment_id", p.ID(), "error", err)
	}

	uc.logger.Infow("payment refunded",
		"payment_id", p.ID(),
		"refund_id", refund.ID(),
		"provider_refund_id", refund.ProviderRefundID(),
		"amount", refund.Amount().StringFixed(),
		"status", refund.Status(),
	)
	return common.Succeeded(fmt.Sprintf("refunded %s", refund.Amount().String()), refund.ID()), nil
}

// refundCharge returns the money of a charge that succeeded after its payment
// had already been settled by another charge. The refund is recorded on the
// charge, not as the payment's Refund.
func (uc *RefundPaymentUseCase) refundCharge(ctx context.Context, cmd RefundPaymentCommand) (*common.Result, error) {
	uc.logger.Infow("refunding duplicate charge", "payment_id", cmd.PaymentID, "charge_id", cmd.ChargeID, "reason", cmd.Reason)

	var p *payment.Payment
	var charge *payment.Charge

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		p, err = uc.paymentRepo.GetByIDForUpdate(txCtx, cmd.PaymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperrors.NewNotFoundError("payment not found", fmt.Sprintf("payment_id=%d", cmd.PaymentID))
		}
		charge, err = uc.paymentRepo.GetChargeByID(txCtx, cmd.ChargeID)
		if err != nil {
			return err
		}
		if charge == nil || charge.PaymentID() != p.ID() {
			return apperrors.NewNotFoundError("payment charge not found", fmt.Sprintf("charge_id=%d", cmd.ChargeID))
		}
		if charge.IsRefunded() {
			return apperrors.NewConflictError("charge already refunded", fmt.Sprintf("charge_id=%d", charge.ID()))
		}
		if !charge.Status().IsSucceeded() || !charge.HasProviderPayment() {
			return apperrors.NewValidationError("only succeeded charges can be refunded", string(charge.Status()))
		}
		if p.ProviderPaymentID() != nil && *p.ProviderPaymentID() == *charge.ProviderPaymentID() {
			return apperrors.NewValidationError("charge settles its payment and is not a duplicate")
		}

		info, err := uc.gateway.CreateRefund(ctx, paymentgateway.CreateRefundRequest{
			ProviderPaymentID: *charge.ProviderPaymentID(),
			Amount:            p.Amount().Amount(),
			Currency:          p.Amount().Currency(),
			Description:       cmd.Reason,
			IdempotencyKey:    uuid.NewString(),
		})
		if err != nil {
			uc.logger.Warnw("provider refund failed", "payment_id", p.ID(), "charge_id", charge.ID(), "error", err)
			return fmt.Errorf("create provider refund: %w", err)
		}

		if err := charge.MarkRefunded(info.ID, uc.clock.Now()); err != nil {
			return err
		}
		return uc.paymentRepo.UpdateCharge(txCtx, charge)
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to refund duplicate charge", "payment_id", cmd.PaymentID, "charge_id", cmd.ChargeID, "error", err)
		}
		return nil, err
	}

	if err := uc.notifier.Notify(ctx, notification.Notification{
		Kind:           notification.KindRefundIssued,
		UserID:         p.UserID(),
		SubscriptionID: p.SubscriptionID(),
		PaymentID:      p.ID(),
		Amount:         p.Amount().Amount(),
		Currency:       p.Amount().Currency(),
	}); err != nil {
		uc.logger.Warnw("failed to send refund notification", "payment_id", p.ID(), "error", err)
	}

	uc.logger.Infow("duplicate charge refunded",
		"payment_id", p.ID(),
		"charge_id", charge.ID(),
		"provider_refund_id", *charge.ProviderRefundID(),
	)
	return common.Succeeded(fmt.Sprintf("refunded duplicate charge %s", p.Amount().String()), charge.ID()), nil
}
