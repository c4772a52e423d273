package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/domain/payment"
	paymentvo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// ProcessSubscriptionUseCase decides, for one subscription due today, whether
// to auto-charge the saved credential, issue a manual payment link, or skip.
type ProcessSubscriptionUseCase struct {
	txManager        *db.TransactionManager
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	userRepo         user.Repository
	paymentRepo      payment.Repository
	gateway          paymentgateway.PaymentGateway
	dispatcher       tasks.Dispatcher
	inFlight         autopayment.InFlightSet
	notifier         notification.Notifier
	clock            biztime.Clock
	currency         string
	returnURL        string
	logger           logger.Interface
}

func NewProcessSubscriptionUseCase(
	txManager *db.TransactionManager,
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	userRepo user.Repository,
	paymentRepo payment.Repository,
	gateway paymentgateway.PaymentGateway,
	dispatcher tasks.Dispatcher,
	inFlight autopayment.InFlightSet,
	notifier notification.Notifier,
	clock biztime.Clock,
	logger logger.Interface,
) *ProcessSubscriptionUseCase {
	return &ProcessSubscriptionUseCase{
		txManager:        txManager,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		userRepo:         userRepo,
		paymentRepo:      paymentRepo,
		gateway:          gateway,
		dispatcher:       dispatcher,
		inFlight:         inFlight,
		notifier:         notifier,
		clock:            clock,
		currency:         paymentvo.DefaultCurrency,
		logger:           logger,
	}
}

// SetCurrency overrides the charge currency.
func (uc *ProcessSubscriptionUseCase) SetCurrency(currency string) {
	if currency != "" {
		uc.currency = currency
	}
}

// SetReturnURL sets where the provider redirects after a manual payment.
func (uc *ProcessSubscriptionUseCase) SetReturnURL(url string) {
	uc.returnURL = url
}

// processPlan is what the locked phase decided.
type processPlan struct {
	skip       *common.Result
	payment    *payment.Payment
	chargeID   uint
	paymentPM  string
	resumeOnly bool
}

func (uc *ProcessSubscriptionUseCase) Execute(ctx context.Context, subscriptionID uint) (*common.Result, error) {
	now := uc.clock.Now()
	defer uc.removeInFlight(ctx, now, subscriptionID)

	uc.logger.Infow("processing subscription renewal", "subscription_id", subscriptionID)

	key := payment.AutoPaymentKey(subscriptionID, now)
	var plan processPlan

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		sub, err := uc.subscriptionRepo.GetByIDForUpdate(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewNotFoundError("subscription not found", fmt.Sprintf("subscription_id=%d", subscriptionID))
		}

		if sub.Status().IsCancelled() {
			plan.skip = common.Skipped(common.ReasonSubscriptionCancelled, subscriptionID)
			return nil
		}
		// Checked before the extension guard: bonus days usually push
		// end_date past today, and the skip should name the promotion.
		if sub.PromotionAppliedOn(now) {
			plan.skip = common.Skipped(common.ReasonPromotionAppliedToday, subscriptionID)
			return nil
		}
		if sub.IsExtendedBeyond(now) {
			plan.skip = common.Skipped(common.ReasonAlreadyExtended, subscriptionID)
			return nil
		}

		u, err := uc.userRepo.GetByID(txCtx, sub.UserID())
		if err != nil {
			return err
		}
		if u == nil {
			return apperrors.NewNotFoundError("user not found", fmt.Sprintf("user_id=%d", sub.UserID()))
		}
		if u.HasSavedPaymentMethod() {
			plan.paymentPM = *u.SavedPaymentMethodID()
		}

		existing, err := uc.paymentRepo.GetByIdempotencyKey(txCtx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.HasProviderPayment() || existing.Status().IsSucceeded() {
				plan.skip = common.Skipped(common.ReasonPaymentExists, existing.ID())
				return nil
			}
			// A previous run created the row but never reached the provider.
			plan.payment = existing
			plan.resumeOnly = true
			charge, err := uc.paymentRepo.GetLatestCharge(txCtx, existing.ID())
			if err != nil {
				return err
			}
			if charge != nil {
				plan.chargeID = charge.ID()
			}
			return nil
		}

		p, err := uc.newPayment(txCtx, sub, u, key, now)
		if err != nil {
			return err
		}
		if err := uc.paymentRepo.Create(txCtx, p); err != nil {
			return err
		}
		if p.Method() == paymentvo.PaymentMethodAutoPayment {
			charge, err := payment.NewCharge(p.ID(), 1, payment.AttemptKey(key, 1), now)
			if err != nil {
				return err
			}
			if err := uc.paymentRepo.CreateCharge(txCtx, charge); err != nil {
				return err
			}
			plan.chargeID = charge.ID()
		}
		plan.payment = p
		return nil
	})
	if err != nil {
		if apperrors.IsDuplicateError(err) {
			return uc.rescueDuplicate(ctx, key)
		}
		uc.logger.Errorw("failed to prepare renewal payment", "subscription_id", subscriptionID, "error", err)
		return nil, err
	}

	if plan.skip != nil {
		uc.logger.Infow("subscription renewal skipped",
			"subscription_id", subscriptionID,
			"reason", plan.skip.Reason,
		)
		return plan.skip, nil
	}

	if plan.resumeOnly {
		uc.logger.Infow("resuming renewal payment without provider charge",
			"subscription_id", subscriptionID,
			"payment_id", plan.payment.ID(),
		)
	}

	if plan.payment.Method() == paymentvo.PaymentMethodManual {
		return uc.chargeManual(ctx, plan.payment)
	}
	return uc.chargeAuto(ctx, plan.payment, plan.chargeID, plan.paymentPM)
}

func (uc *ProcessSubscriptionUseCase) newPayment(ctx context.Context, sub *subscription.Subscription, u *user.User, key string, now time.Time) (*payment.Payment, error) {
	pl, err := uc.planRepo.GetByID(ctx, sub.PlanID())
	if err != nil {
		return nil, err
	}
	if pl == nil {
		return nil, apperrors.NewNotFoundError("plan not found", fmt.Sprintf("plan_id=%d", sub.PlanID()))
	}

	method := paymentvo.PaymentMethodManual
	if u.HasSavedPaymentMethod() {
		method = paymentvo.PaymentMethodAutoPayment
	}
	return payment.NewPayment(u.ID(), sub.ID(), paymentvo.NewMoney(pl.Price(), uc.currency), method, key, now)
}

// rescueDuplicate handles a concurrent processor winning the insert race.
func (uc *ProcessSubscriptionUseCase) rescueDuplicate(ctx context.Context, key string) (*common.Result, error) {
	existing, err := uc.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperrors.NewInternalError("duplicate payment key without row", key)
	}
	uc.logger.Infow("concurrent renewal detected, using existing payment",
		"payment_id", existing.ID(),
		"idempotency_key", key,
	)
	return common.Skipped(common.ReasonPaymentExists, existing.ID()), nil
}

// chargeManual issues a redirect charge. Auto-renewal is impossible without a
// saved credential, so the subscription is cancelled and the user is sent the link.
func (uc *ProcessSubscriptionUseCase) chargeManual(ctx context.Context, p *payment.Payment) (*common.Result, error) {
	info, err := uc.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:            p.Amount().Amount(),
		Currency:          p.Amount().Currency(),
		Description:       fmt.Sprintf("Subscription #%d renewal", p.SubscriptionID()),
		IdempotencyKey:    p.IdempotencyKey(),
		Capture:           true,
		SavePaymentMethod: true,
		ReturnURL:         uc.returnURL,
		Metadata:          paymentMetadata(p),
	})
	if err != nil {
		uc.logger.Warnw("failed to create manual payment link",
			"subscription_id", p.SubscriptionID(),
			"payment_id", p.ID(),
			"error", err,
		)
		return nil, fmt.Errorf("create manual payment: %w", err)
	}

	var endDate time.Time
	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.paymentRepo.GetByIDForUpdate(txCtx, p.ID())
		if err != nil {
			return err
		}
		now := uc.clock.Now()
		locked.AttachProviderPayment(info.ID, info.ConfirmationURL, now)
		if err := uc.paymentRepo.Update(txCtx, locked); err != nil {
			return err
		}
		p = locked

		sub, err := uc.subscriptionRepo.GetByIDForUpdate(txCtx, p.SubscriptionID())
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewNotFoundError("subscription not found")
		}
		endDate = sub.EndDate()
		if sub.Status().IsActive() {
			if err := sub.Cancel(now); err != nil {
				return err
			}
			return uc.subscriptionRepo.Update(txCtx, sub)
		}
		return nil
	})
	if err != nil {
		uc.logger.Errorw("failed to persist manual payment link", "payment_id", p.ID(), "error", err)
		return nil, err
	}

	uc.notify(ctx, notification.Notification{
		Kind:            notification.KindManualPaymentRequired,
		UserID:          p.UserID(),
		SubscriptionID:  p.SubscriptionID(),
		PaymentID:       p.ID(),
		Amount:          p.Amount().Amount(),
		Currency:        p.Amount().Currency(),
		EndDate:         endDate,
		ConfirmationURL: info.ConfirmationURL,
	})

	uc.logger.Infow("manual payment link issued",
		"subscription_id", p.SubscriptionID(),
		"payment_id", p.ID(),
		"provider_payment_id", info.ID,
	)
	result := common.Succeeded("manual payment link created", p.ID())
	result.ConfirmationURL = info.ConfirmationURL
	return result, nil
}

// chargeAuto creates the first charge against the saved credential and hands
// the payment to the retry driver. A failed create is left to attempt 1.
func (uc *ProcessSubscriptionUseCase) chargeAuto(ctx context.Context, p *payment.Payment, chargeID uint, paymentMethodID string) (*common.Result, error) {
	metadata := paymentMetadata(p)
	if chargeID != 0 {
		metadata["charge_id"] = fmt.Sprintf("%d", chargeID)
	}
	info, err := uc.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:          p.Amount().Amount(),
		Currency:        p.Amount().Currency(),
		Description:     fmt.Sprintf("Subscription #%d auto renewal", p.SubscriptionID()),
		IdempotencyKey:  payment.AttemptKey(p.IdempotencyKey(), 1),
		Capture:         true,
		PaymentMethodID: paymentMethodID,
		Metadata:        metadata,
	})
	if err != nil {
		uc.logger.Warnw("auto charge creation failed, deferring to retry driver",
			"subscription_id", p.SubscriptionID(),
			"payment_id", p.ID(),
			"error", err,
		)
	} else {
		err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
			locked, err := uc.paymentRepo.GetByIDForUpdate(txCtx, p.ID())
			if err != nil {
				return err
			}
			return uc.attachFirstCharge(txCtx, locked, info)
		})
		if err != nil {
			uc.logger.Errorw("failed to record provider payment id", "payment_id", p.ID(), "error", err)
			return nil, err
		}
	}

	if err := uc.dispatcher.DispatchRetryPayment(ctx, p.ID(), 1, 0); err != nil {
		uc.logger.Errorw("failed to schedule payment retry", "payment_id", p.ID(), "error", err)
		return nil, err
	}

	uc.logger.Infow("auto payment created",
		"subscription_id", p.SubscriptionID(),
		"payment_id", p.ID(),
	)
	return common.Succeeded("auto payment created", p.ID()), nil
}

// attachFirstCharge records the provider id on the payment and its attempt-1
// charge. A retry that already moved past attempt 1 owns the row.
func (uc *ProcessSubscriptionUseCase) attachFirstCharge(ctx context.Context, p *payment.Payment, info *paymentgateway.PaymentInfo) error {
	now := uc.clock.Now()

	charge, err := uc.paymentRepo.GetLatestCharge(ctx, p.ID())
	if err != nil {
		return err
	}
	if charge == nil {
		charge, err = payment.NewCharge(p.ID(), 1, payment.AttemptKey(p.IdempotencyKey(), 1), now)
		if err != nil {
			return err
		}
		if err := uc.paymentRepo.CreateCharge(ctx, charge); err != nil {
			return err
		}
	}
	if charge.AttemptNumber() != 1 || charge.HasProviderPayment() {
		return nil
	}

	charge.Attach(info.ID, now)
	charge.ApplyStatus(paymentvo.FromProviderStatus(info.Status), now)
	if err := uc.paymentRepo.UpdateCharge(ctx, charge); err != nil {
		return err
	}
	if p.HasProviderPayment() {
		return nil
	}
	p.AttachProviderPayment(info.ID, "", now)
	return uc.paymentRepo.Update(ctx, p)
}

func (uc *ProcessSubscriptionUseCase) removeInFlight(ctx context.Context, now time.Time, subscriptionID uint) {
	if uc.inFlight == nil {
		return
	}
	if err := uc.inFlight.Remove(ctx, now, subscriptionID); err != nil {
		uc.logger.Warnw("failed to remove subscription from in-flight set",
			"subscription_id", subscriptionID,
			"error", err,
		)
	}
}

func (uc *ProcessSubscriptionUseCase) notify(ctx context.Context, n notification.Notification) {
	if err := uc.notifier.Notify(ctx, n); err != nil {
		uc.logger.Warnw("failed to send notification", "kind", n.Kind, "user_id", n.UserID, "error", err)
	}
}

func paymentMetadata(p *payment.Payment) map[string]string {
	return map[string]string{
		"payment_id":      fmt.Sprintf("%d", p.ID()),
		"subscription_id": fmt.Sprintf("%d", p.SubscriptionID()),
		"user_id":         fmt.Sprintf("%d", p.UserID()),
	}
}
