package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// StartCardChangeUseCase opens a two-stage token charge whose only purpose
// is to capture a new saved credential. The hold is released or refunded
// by the webhook reconciler.
type StartCardChangeUseCase struct {
	txManager        *db.TransactionManager
	userRepo         user.Repository
	subscriptionRepo subscription.Repository
	paymentRepo      payment.Repository
	gateway          paymentgateway.PaymentGateway
	amount           vo.Money
	returnURL        string
	clock            biztime.Clock
	logger           logger.Interface
}

func NewStartCardChangeUseCase(
	txManager *db.TransactionManager,
	userRepo user.Repository,
	subscriptionRepo subscription.Repository,
	paymentRepo payment.Repository,
	gateway paymentgateway.PaymentGateway,
	amount decimal.Decimal,
	currency string,
	returnURL string,
	clock biztime.Clock,
	logger logger.Interface,
) *StartCardChangeUseCase {
	return &StartCardChangeUseCase{
		txManager:        txManager,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		paymentRepo:      paymentRepo,
		gateway:          gateway,
		amount:           vo.NewMoney(amount, currency),
		returnURL:        returnURL,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *StartCardChangeUseCase) Execute(ctx context.Context, userID uint) (*common.Result, error) {
	if !uc.amount.IsPositive() {
		return nil, apperrors.NewInternalError("card change amount is not configured")
	}

	var p *payment.Payment
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		u, err := uc.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return apperrors.NewNotFoundError("user not found", fmt.Sprintf("user_id=%d", userID))
		}
		sub, err := uc.subscriptionRepo.GetActiveByUserID(txCtx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewValidationError("card change requires an active subscription")
		}

		p, err = payment.NewPayment(userID, sub.ID(), uc.amount, vo.PaymentMethodCardChange,
			payment.CardChangeKey(userID, uuid.NewString()), uc.clock.Now())
		if err != nil {
			return err
		}
		return uc.paymentRepo.Create(txCtx, p)
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to create card change payment", "user_id", userID, "error", err)
		}
		return nil, err
	}

	info, err := uc.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:            p.Amount().Amount(),
		Currency:          p.Amount().Currency(),
		Description:       "Payment method verification",
		IdempotencyKey:    p.IdempotencyKey(),
		Capture:           false,
		SavePaymentMethod: true,
		ReturnURL:         uc.returnURL,
		Metadata: map[string]string{
			"payment_id": fmt.Sprintf("%d", p.ID()),
			"user_id":    fmt.Sprintf("%d", userID),
			"purpose":    vo.PaymentMethodCardChange.String(),
		},
	})
	if err != nil {
		uc.logger.Warnw("failed to create card change charge", "user_id", userID, "payment_id", p.ID(), "error", err)
		return nil, fmt.Errorf("create card change charge: %w", err)
	}

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.paymentRepo.GetByIDForUpdate(txCtx, p.ID())
		if err != nil {
			return err
		}
		locked.AttachProviderPayment(info.ID, info.ConfirmationURL, uc.clock.Now())
		return uc.paymentRepo.Update(txCtx, locked)
	})
	if err != nil {
		uc.logger.Errorw("failed to record card change charge", "payment_id", p.ID(), "error", err)
		return nil, err
	}

	uc.logger.Infow("card change started",
		"user_id", userID,
		"payment_id", p.ID(),
		"provider_payment_id", info.ID,
	)
	result := common.Succeeded("confirm the new payment method", p.ID())
	result.ConfirmationURL = info.ConfirmationURL
	return result, nil
}
