package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/application/subscription/services"
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

// RetryPaymentUseCase drives one attempt of the per-payment retry chain.
// Each attempt either settles the payment, leaves it to the webhook, or
// schedules the next attempt; the last failed attempt parks the
// subscription in cancelled_waiting.
type RetryPaymentUseCase struct {
	txManager        *db.TransactionManager
	paymentRepo      payment.Repository
	subscriptionRepo subscription.Repository
	userRepo         user.Repository
	renewal          *services.RenewalService
	gateway          paymentgateway.PaymentGateway
	dispatcher       tasks.Dispatcher
	settings         autopayment.SettingsProvider
	notifier         notification.Notifier
	clock            biztime.Clock
	logger           logger.Interface
}

func NewRetryPaymentUseCase(
	txManager *db.TransactionManager,
	paymentRepo payment.Repository,
	subscriptionRepo subscription.Repository,
	userRepo user.Repository,
	renewal *services.RenewalService,
	gateway paymentgateway.PaymentGateway,
	dispatcher tasks.Dispatcher,
	settings autopayment.SettingsProvider,
	notifier notification.Notifier,
	clock biztime.Clock,
	logger logger.Interface,
) *RetryPaymentUseCase {
	return &RetryPaymentUseCase{
		txManager:        txManager,
		paymentRepo:      paymentRepo,
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
		renewal:          renewal,
		gateway:          gateway,
		dispatcher:       dispatcher,
		settings:         settings,
		notifier:         notifier,
		clock:            clock,
		logger:           logger,
	}
}

type retryStep int

const (
	stepDone retryStep = iota
	stepCreate
	stepLookup
)

// retryState carries decisions out of a locked phase.
type retryState struct {
	step              retryStep
	result            *common.Result
	notifications     []notification.Notification
	paymentMethodID   string
	providerPaymentID string
	paymentID         uint
	chargeID          uint
	chargeKey         string
	amount            paymentvo.Money
	subscriptionID    uint
	userID            uint
	scheduleNext      bool
}

func (uc *RetryPaymentUseCase) Execute(ctx context.Context, paymentID uint, attempt int) (*common.Result, error) {
	if attempt < 1 {
		return nil, apperrors.NewValidationError("attempt must be positive")
	}

	settings, err := uc.settings.Load(ctx)
	if err != nil {
		uc.logger.Errorw("failed to load auto payment settings", "error", err)
		return nil, err
	}

	uc.logger.Infow("running payment retry attempt",
		"payment_id", paymentID,
		"attempt", attempt,
		"max_attempts", settings.MaxAttempts,
	)

	state, err := uc.prepare(ctx, paymentID, attempt)
	if err != nil {
		uc.logger.Errorw("failed to prepare payment attempt", "payment_id", paymentID, "attempt", attempt, "error", err)
		return nil, err
	}
	if state.step == stepDone {
		uc.notifyAll(ctx, state.notifications)
		uc.logResult(paymentID, attempt, state.result)
		return state.result, nil
	}

	info, providerErr := uc.callProvider(ctx, state, attempt)

	state, err = uc.reconcile(ctx, paymentID, attempt, settings, state, info, providerErr)
	if err != nil {
		uc.logger.Errorw("failed to reconcile payment attempt", "payment_id", paymentID, "attempt", attempt, "error", err)
		return nil, err
	}

	if state.scheduleNext {
		if err := uc.dispatcher.DispatchRetryPayment(ctx, paymentID, attempt+1, settings.RetryInterval()); err != nil {
			uc.logger.Errorw("failed to schedule next payment attempt",
				"payment_id", paymentID,
				"attempt", attempt+1,
				"error", err,
			)
			return nil, err
		}
	}

	uc.notifyAll(ctx, state.notifications)
	uc.logResult(paymentID, attempt, state.result)
	return state.result, nil
}

// prepare applies the pre-provider decision table under the payment and
// subscription row locks.
func (uc *RetryPaymentUseCase) prepare(ctx context.Context, paymentID uint, attempt int) (*retryState, error) {
	state := &retryState{}

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		p, sub, err := uc.lockPair(txCtx, paymentID)
		if err != nil {
			return err
		}

		if attempt < p.AttemptNumber() {
			state.result = common.Skipped(common.ReasonStaleAttempt, p.ID())
			return nil
		}

		if p.Method() != paymentvo.PaymentMethodAutoPayment {
			state.result = common.Skipped(common.ReasonIgnored, p.ID())
			return nil
		}

		if p.Status().IsSucceeded() {
			return uc.settleSucceeded(txCtx, state, sub, p, now)
		}

		if sub.Status().IsCancelled() {
			state.result = common.Skipped(common.ReasonSubscriptionCancelled, p.ID())
			return nil
		}
		if sub.IsExtendedBeyond(now) {
			state.result = common.Skipped(common.ReasonAlreadyExtended, p.ID())
			return nil
		}

		u, err := uc.userRepo.GetByID(txCtx, p.UserID())
		if err != nil {
			return err
		}
		if u == nil || !u.HasSavedPaymentMethod() {
			if err := p.MarkFailed(attempt, now); err != nil {
				return err
			}
			if err := uc.paymentRepo.Update(txCtx, p); err != nil {
				return err
			}
			state.result = common.Finished(common.ReasonNoSavedPaymentMethod, "no saved payment method", p.ID())
			return nil
		}

		state.paymentMethodID = *u.SavedPaymentMethodID()
		state.amount = p.Amount()
		state.paymentID = p.ID()
		state.subscriptionID = p.SubscriptionID()
		state.userID = p.UserID()

		return uc.chooseCharge(txCtx, state, p, attempt, now)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// chooseCharge decides which provider call this attempt makes. A new charge
// is opened only after the provider reported the previous one cancelled;
// a charge with an unknown outcome is looked up again, and a create that
// never got an answer is repeated under the same key.
func (uc *RetryPaymentUseCase) chooseCharge(ctx context.Context, state *retryState, p *payment.Payment, attempt int, now time.Time) error {
	charge, err := uc.paymentRepo.GetLatestCharge(ctx, p.ID())
	if err != nil {
		return err
	}

	if charge == nil && p.HasProviderPayment() {
		// Payments created before charges were tracked.
		charge, err = payment.NewCharge(p.ID(), p.AttemptNumber(), payment.AttemptKey(p.IdempotencyKey(), p.AttemptNumber()), now)
		if err != nil {
			return err
		}
		charge.Attach(*p.ProviderPaymentID(), now)
		if err := uc.paymentRepo.CreateCharge(ctx, charge); err != nil {
			return err
		}
	}

	switch {
	case charge == nil || charge.CanBeReplacedBy(attempt):
		charge, err = payment.NewCharge(p.ID(), attempt, payment.AttemptKey(p.IdempotencyKey(), attempt), now)
		if err != nil {
			return err
		}
		if err := uc.paymentRepo.CreateCharge(ctx, charge); err != nil {
			return err
		}
		if err := p.BeginAttempt(attempt, now); err != nil {
			return err
		}
		if err := uc.paymentRepo.Update(ctx, p); err != nil {
			return err
		}
		state.step = stepCreate

	case !charge.HasProviderPayment():
		state.step = stepCreate

	default:
		state.providerPaymentID = *charge.ProviderPaymentID()
		state.step = stepLookup
	}

	state.chargeID = charge.ID()
	state.chargeKey = charge.IdempotencyKey()
	return nil
}

func (uc *RetryPaymentUseCase) callProvider(ctx context.Context, state *retryState, attempt int) (*paymentgateway.PaymentInfo, error) {
	if state.step == stepLookup {
		info, err := uc.gateway.GetPayment(ctx, state.providerPaymentID)
		if err != nil {
			uc.logger.Warnw("provider payment lookup failed",
				"provider_payment_id", state.providerPaymentID,
				"attempt", attempt,
				"error", err,
			)
		}
		return info, err
	}

	info, err := uc.gateway.CreatePayment(ctx, paymentgateway.CreatePaymentRequest{
		Amount:          state.amount.Amount(),
		Currency:        state.amount.Currency(),
		Description:     fmt.Sprintf("Subscription #%d auto renewal", state.subscriptionID),
		IdempotencyKey:  state.chargeKey,
		Capture:         true,
		PaymentMethodID: state.paymentMethodID,
		Metadata: map[string]string{
			"payment_id":      fmt.Sprintf("%d", state.paymentID),
			"charge_id":       fmt.Sprintf("%d", state.chargeID),
			"subscription_id": fmt.Sprintf("%d", state.subscriptionID),
			"user_id":         fmt.Sprintf("%d", state.userID),
			"attempt":         fmt.Sprintf("%d", attempt),
		},
	})
	if err != nil {
		uc.logger.Warnw("provider charge creation failed",
			"subscription_id", state.subscriptionID,
			"attempt", attempt,
			"error", err,
		)
	}
	return info, err
}

// reconcile writes the provider outcome without regressing a succeeded
// status a concurrent webhook may have recorded.
func (uc *RetryPaymentUseCase) reconcile(
	ctx context.Context,
	paymentID uint,
	attempt int,
	settings autopayment.Settings,
	prev *retryState,
	info *paymentgateway.PaymentInfo,
	providerErr error,
) (*retryState, error) {
	state := &retryState{}

	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		p, sub, err := uc.lockPair(txCtx, paymentID)
		if err != nil {
			return err
		}

		if attempt < p.AttemptNumber() {
			state.result = common.Skipped(common.ReasonStaleAttempt, p.ID())
			return nil
		}

		incoming := paymentvo.PaymentStatusFailed
		if providerErr == nil && info != nil {
			incoming = paymentvo.FromProviderStatus(info.Status)
			if err := uc.recordCharge(txCtx, p, prev.chargeID, info, incoming, now); err != nil {
				return err
			}
		}

		if p.Status().IsSucceeded() || incoming.IsSucceeded() {
			p.ApplyStatus(paymentvo.PaymentStatusSucceeded, now)
			if err := uc.paymentRepo.Update(txCtx, p); err != nil {
				return err
			}
			return uc.settleSucceeded(txCtx, state, sub, p, now)
		}

		if incoming.IsInProgress() {
			p.ApplyStatus(incoming, now)
			if err := uc.paymentRepo.Update(txCtx, p); err != nil {
				return err
			}
			state.result = &common.Result{
				Success: true,
				Reason:  common.ReasonPending,
				Message: "payment pending at provider",
				IDs:     []uint{p.ID()},
			}
			return nil
		}

		if err := p.MarkFailed(attempt, now); err != nil {
			return err
		}
		if err := uc.paymentRepo.Update(txCtx, p); err != nil {
			return err
		}

		if sub.Status().IsCancelled() {
			state.result = common.Finished(common.ReasonSubscriptionCancelled, "payment failed, subscription already cancelled", p.ID())
			return nil
		}

		if attempt < settings.MaxAttempts {
			state.scheduleNext = true
			state.result = common.Failed(common.ReasonRetryScheduled,
				fmt.Sprintf("attempt %d failed, retry scheduled", attempt), p.ID())
			return nil
		}

		if err := sub.MarkCancelledWaiting(now); err != nil {
			return err
		}
		if err := uc.subscriptionRepo.Update(txCtx, sub); err != nil {
			return err
		}
		state.notifications = append(state.notifications, notification.Notification{
			Kind:           notification.KindRetriesExhausted,
			UserID:         p.UserID(),
			SubscriptionID: sub.ID(),
			PaymentID:      p.ID(),
			Amount:         p.Amount().Amount(),
			Currency:       p.Amount().Currency(),
			EndDate:        sub.EndDate(),
		})
		state.result = common.Finished(common.ReasonAttemptsExhausted,
			fmt.Sprintf("all %d attempts failed", settings.MaxAttempts), p.ID())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// recordCharge stores the provider answer on the charge the attempt used.
// The payment points at the charge only while it is the latest one.
func (uc *RetryPaymentUseCase) recordCharge(ctx context.Context, p *payment.Payment, chargeID uint, info *paymentgateway.PaymentInfo, incoming paymentvo.PaymentStatus, now time.Time) error {
	charge, err := uc.paymentRepo.GetChargeByID(ctx, chargeID)
	if err != nil {
		return err
	}
	if charge == nil {
		return apperrors.NewNotFoundError("payment charge not found", fmt.Sprintf("charge_id=%d", chargeID))
	}

	charge.Attach(info.ID, now)
	charge.ApplyStatus(incoming, now)
	if err := uc.paymentRepo.UpdateCharge(ctx, charge); err != nil {
		return err
	}

	latest, err := uc.paymentRepo.GetLatestCharge(ctx, p.ID())
	if err != nil {
		return err
	}
	if latest != nil && latest.ID() == charge.ID() && !p.HasProviderPayment() {
		p.AttachProviderPayment(*charge.ProviderPaymentID(), info.ConfirmationURL, now)
	}
	return nil
}

// settleSucceeded applies a succeeded payment to its subscription exactly once.
func (uc *RetryPaymentUseCase) settleSucceeded(ctx context.Context, state *retryState, sub *subscription.Subscription, p *payment.Payment, now time.Time) error {
	if sub.IsExtendedBeyond(now) {
		state.result = common.Finished(common.ReasonAlreadyDone, "payment already applied", p.ID())
		return nil
	}

	reaction, err := uc.renewal.ApplySucceededPayment(ctx, sub, p, now)
	if err != nil {
		return err
	}
	if reaction == subscription.ReactionNone {
		state.result = common.Finished(common.ReasonAlreadyDone, "payment needs no subscription change", p.ID())
		return nil
	}

	state.notifications = append(state.notifications, notification.Notification{
		Kind:           notification.KindRenewalSucceeded,
		UserID:         p.UserID(),
		SubscriptionID: sub.ID(),
		PaymentID:      p.ID(),
		Amount:         p.Amount().Amount(),
		Currency:       p.Amount().Currency(),
		EndDate:        sub.EndDate(),
	})
	state.result = common.Finished(common.ReasonRenewed, "subscription renewed", p.ID())
	return nil
}

// lockPair locks the payment, then its subscription.
func (uc *RetryPaymentUseCase) lockPair(ctx context.Context, paymentID uint) (*payment.Payment, *subscription.Subscription, error) {
	p, err := uc.paymentRepo.GetByIDForUpdate(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, apperrors.NewNotFoundError("payment not found", fmt.Sprintf("payment_id=%d", paymentID))
	}
	sub, err := uc.subscriptionRepo.GetByIDForUpdate(ctx, p.SubscriptionID())
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, apperrors.NewNotFoundError("subscription not found", fmt.Sprintf("subscription_id=%d", p.SubscriptionID()))
	}
	return p, sub, nil
}

func (uc *RetryPaymentUseCase) notifyAll(ctx context.Context, notifications []notification.Notification) {
	for _, n := range notifications {
		if err := uc.notifier.Notify(ctx, n); err != nil {
			uc.logger.Warnw("failed to send notification", "kind", n.Kind, "user_id", n.UserID, "error", err)
		}
	}
}

func (uc *RetryPaymentUseCase) logResult(paymentID uint, attempt int, result *common.Result) {
	uc.logger.Infow("payment retry attempt finished",
		"payment_id", paymentID,
		"attempt", attempt,
		"success", result.Success,
		"skipped", result.Skipped,
		"final", result.Final,
		"reason", result.Reason,
	)
}
