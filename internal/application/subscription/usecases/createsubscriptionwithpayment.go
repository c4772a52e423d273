package usecases

import (
	"context"
	"fmt"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/domain/payment"
	paymentvo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type CreateSubscriptionWithPaymentCommand struct {
	ExternalID string `json:"external_id" binding:"required"`
	PlanID     uint   `json:"plan_id" binding:"required"`
}

// CreateSubscriptionWithPaymentUseCase starts a payment-first subscription:
// the subscription stays pending_payment until the webhook confirms the charge.
type CreateSubscriptionWithPaymentUseCase struct {
	txManager        *db.TransactionManager
	userRepo         user.Repository
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	paymentRepo      payment.Repository
	gateway          paymentgateway.PaymentGateway
	currency         string
	returnURL        string
	clock            biztime.Clock
	logger           logger.Interface
}

func NewCreateSubscriptionWithPaymentUseCase(
	txManager *db.TransactionManager,
	userRepo user.Repository,
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	paymentRepo payment.Repository,
	gateway paymentgateway.PaymentGateway,
	currency string,
	returnURL string,
	clock biztime.Clock,
	logger logger.Interface,
) *CreateSubscriptionWithPaymentUseCase {
	if currency == "" {
		currency = paymentvo.DefaultCurrency
	}
	return &CreateSubscriptionWithPaymentUseCase{
		txManager:        txManager,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		paymentRepo:      paymentRepo,
		gateway:          gateway,
		currency:         currency,
		returnURL:        returnURL,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *CreateSubscriptionWithPaymentUseCase) Execute(ctx context.Context, cmd CreateSubscriptionWithPaymentCommand) (*common.Result, error) {
	if cmd.ExternalID == "" || cmd.PlanID == 0 {
		return nil, apperrors.NewValidationError("external_id and plan_id are required")
	}

	u, err := uc.userRepo.GetOrCreateByExternalID(ctx, cmd.ExternalID, uc.clock.Now())
	if err != nil {
		uc.logger.Errorw("failed to resolve user", "external_id", cmd.ExternalID, "error", err)
		return nil, err
	}

	var sub *subscription.Subscription
	var p *payment.Payment

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		// Serialises concurrent checkouts of one user.
		if _, err := uc.userRepo.GetByIDForUpdate(txCtx, u.ID()); err != nil {
			return err
		}

		active, err := uc.subscriptionRepo.GetActiveByUserID(txCtx, u.ID())
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.NewConflictError("user already has an active subscription",
				fmt.Sprintf("subscription_id=%d", active.ID()))
		}

		plan, err := uc.planRepo.GetByID(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if plan == nil {
			return apperrors.NewNotFoundError("plan not found", fmt.Sprintf("plan_id=%d", cmd.PlanID))
		}

		expired, err := uc.subscriptionRepo.ExpirePendingByUserID(txCtx, u.ID(), now)
		if err != nil {
			return err
		}
		if expired > 0 {
			uc.logger.Infow("expired abandoned pending subscriptions", "user_id", u.ID(), "count", expired)
		}

		sub, err = subscription.NewPendingSubscription(u.ID(), plan.ID(), plan.DurationDays(), now)
		if err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Create(txCtx, sub); err != nil {
			return err
		}

		p, err = payment.NewPayment(u.ID(), sub.ID(), paymentvo.NewMoney(plan.Price(), uc.currency),
			paymentvo.PaymentMethodManual, payment.SubscriptionPaymentKey(sub.ID()), now)
		if err != nil {
			return err
		}
		return uc.paymentRepo.Create(txCtx, p)
	})
	if err != nil {
		if !apperrors.IsAppError(err) {
			uc.logger.Errorw("failed to create pending subscription", "user_id", u.ID(), "error", err)
		}
		return nil, err
	}

	info, err := uc.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:            p.Amount().Amount(),
		Currency:          p.Amount().Currency(),
		Description:       fmt.Sprintf("Subscription #%d", sub.ID()),
		IdempotencyKey:    p.IdempotencyKey(),
		Capture:           true,
		SavePaymentMethod: true,
		ReturnURL:         uc.returnURL,
		Metadata: map[string]string{
			"payment_id":      fmt.Sprintf("%d", p.ID()),
			"subscription_id": fmt.Sprintf("%d", sub.ID()),
			"user_id":         fmt.Sprintf("%d", u.ID()),
		},
	})
	if err != nil {
		uc.logger.Warnw("failed to create subscription payment", "subscription_id", sub.ID(), "error", err)
		return nil, fmt.Errorf("create subscription payment: %w", err)
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
		uc.logger.Errorw("failed to record subscription payment", "payment_id", p.ID(), "error", err)
		return nil, err
	}

	uc.logger.Infow("pending subscription created",
		"user_id", u.ID(),
		"subscription_id", sub.ID(),
		"payment_id", p.ID(),
	)
	result := common.Succeeded("subscription awaiting payment", sub.ID(), p.ID())
	result.ConfirmationURL = info.ConfirmationURL
	return result, nil
}
