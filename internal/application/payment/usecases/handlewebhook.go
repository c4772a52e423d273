package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/application/subscription/services"
	"github.com/orris-inc/autopay/internal/application/tasks"
	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

const (
	eventPrefixPayment = "payment."
	eventPrefixRefund  = "refund."

	cardChangeRefundReason      = "card change verification"
	duplicateChargeRefundReason = "duplicate renewal charge"

	metadataChargeID = "charge_id"
)

// WebhookEvent is the subset of a provider notification the engine reads.
type WebhookEvent struct {
	Event  string        `json:"event" binding:"required"`
	Object WebhookObject `json:"object" binding:"required"`
}

type WebhookObject struct {
	ID            string                `json:"id" binding:"required"`
	Status        string                `json:"status" binding:"required"`
	PaymentID     string                `json:"payment_id,omitempty"`
	PaymentMethod *WebhookPaymentMethod `json:"payment_method,omitempty"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
}

type WebhookPaymentMethod struct {
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

// chargeID reads the charge id the engine put into the charge metadata.
// It is the only link to a charge whose create reply never arrived.
func (o WebhookObject) chargeID() uint {
	id, err := strconv.ParseUint(o.Metadata[metadataChargeID], 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func (o WebhookObject) savedMethodID() string {
	if o.PaymentMethod == nil || !o.PaymentMethod.Saved {
		return ""
	}
	return o.PaymentMethod.ID
}

// HandleWebhookUseCase reconciles provider notifications into payments,
// refunds and subscriptions. Re-delivered events are no-ops.
type HandleWebhookUseCase struct {
	txManager        *db.TransactionManager
	paymentRepo      payment.Repository
	refundRepo       payment.RefundRepository
	subscriptionRepo subscription.Repository
	userRepo         user.Repository
	renewal          *services.RenewalService
	gateway          paymentgateway.PaymentGateway
	dispatcher       tasks.Dispatcher
	notifier         notification.Notifier
	clock            biztime.Clock
	logger           logger.Interface
}

func NewHandleWebhookUseCase(
	txManager *db.TransactionManager,
	paymentRepo payment.Repository,
	refundRepo payment.RefundRepository,
	subscriptionRepo subscription.Repository,
	userRepo user.Repository,
	renewal *services.RenewalService,
	gateway paymentgateway.PaymentGateway,
	dispatcher tasks.Dispatcher,
	notifier notification.Notifier,
	clock biztime.Clock,
	logger logger.Interface,
) *HandleWebhookUseCase {
	return &HandleWebhookUseCase{
		txManager:        txManager,
		paymentRepo:      paymentRepo,
		refundRepo:       refundRepo,
		subscriptionRepo: subscriptionRepo,
		userRepo:         userRepo,
		renewal:          renewal,
		gateway:          gateway,
		dispatcher:       dispatcher,
		notifier:         notifier,
		clock:            clock,
		logger:           logger,
	}
}

func (uc *HandleWebhookUseCase) Execute(ctx context.Context, evt WebhookEvent) (*common.Result, error) {
	uc.logger.Infow("received payment provider webhook",
		"event", evt.Event,
		"object_id", evt.Object.ID,
		"status", evt.Object.Status,
	)

	switch {
	case strings.HasPrefix(evt.Event, eventPrefixRefund):
		return uc.handleRefund(ctx, evt)
	case strings.HasPrefix(evt.Event, eventPrefixPayment):
		return uc.handlePayment(ctx, evt)
	default:
		uc.logger.Infow("ignoring unsupported webhook event", "event", evt.Event)
		return common.Skipped(common.ReasonIgnored), nil
	}
}

func (uc *HandleWebhookUseCase) handleRefund(ctx context.Context, evt WebhookEvent) (*common.Result, error) {
	var result *common.Result
	err := uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		refund, err := uc.refundRepo.GetByProviderRefundID(txCtx, evt.Object.ID)
		if err != nil {
			return err
		}
		if refund == nil {
			result = common.Skipped(common.ReasonUnrelated)
			return nil
		}
		if !refund.UpdateStatus(payment.RefundStatus(evt.Object.Status)) {
			result = common.Skipped(common.ReasonAlreadyDone, refund.ID())
			return nil
		}
		if err := uc.refundRepo.Update(txCtx, refund); err != nil {
			return err
		}
		result = common.Succeeded("refund status updated", refund.ID())
		return nil
	})
	if err != nil {
		uc.logger.Errorw("failed to reconcile refund webhook", "provider_refund_id", evt.Object.ID, "error", err)
		return nil, err
	}
	return result, nil
}

// paymentOutcome carries post-commit work out of the locked section.
type paymentOutcome struct {
	result        *common.Result
	notifications []notification.Notification
	refund        *tasks.RefundPaymentPayload
	releaseHold   string
}

func (uc *HandleWebhookUseCase) handlePayment(ctx context.Context, evt WebhookEvent) (*common.Result, error) {
	paymentID, err := uc.resolvePayment(ctx, evt.Object)
	if err != nil {
		uc.logger.Errorw("failed to look up webhook payment", "provider_payment_id", evt.Object.ID, "error", err)
		return nil, err
	}
	if paymentID == 0 {
		uc.logger.Infow("webhook for unknown payment acknowledged", "provider_payment_id", evt.Object.ID)
		return common.Skipped(common.ReasonUnrelated), nil
	}

	incoming := vo.FromProviderStatus(evt.Object.Status)
	out := &paymentOutcome{}

	err = uc.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		now := uc.clock.Now()

		p, err := uc.paymentRepo.GetByIDForUpdate(txCtx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperrors.NewNotFoundError("payment not found")
		}
		sub, err := uc.subscriptionRepo.GetByIDForUpdate(txCtx, p.SubscriptionID())
		if err != nil {
			return err
		}
		if sub == nil {
			return apperrors.NewNotFoundError("subscription not found", fmt.Sprintf("subscription_id=%d", p.SubscriptionID()))
		}

		current, err := uc.recordCharge(txCtx, out, p, evt.Object, incoming, now)
		if err != nil {
			return err
		}
		if !current {
			if out.result == nil {
				out.result = common.Skipped(common.ReasonUnrelated, p.ID())
			}
			return nil
		}

		wasSucceeded := p.Status().IsSucceeded()
		if p.ApplyStatus(incoming, now) {
			if err := uc.paymentRepo.Update(txCtx, p); err != nil {
				return err
			}
		}

		switch {
		case incoming.IsSucceeded():
			if wasSucceeded {
				// The refund task rejects a second refund, so a re-delivery
				// may safely re-enqueue one that was lost.
				if p.Method().IsCardChange() {
					out.refund = &tasks.RefundPaymentPayload{PaymentID: p.ID(), Reason: cardChangeRefundReason}
				}
				out.result = common.Skipped(common.ReasonAlreadyDone, p.ID())
				return nil
			}
			if err := uc.saveMethod(txCtx, p.UserID(), evt.Object.savedMethodID(), now); err != nil {
				return err
			}
			if p.Method().IsCardChange() {
				out.refund = &tasks.RefundPaymentPayload{PaymentID: p.ID(), Reason: cardChangeRefundReason}
				out.result = common.Succeeded("payment method updated", p.ID())
				return nil
			}
			return uc.applySuccess(txCtx, out, sub, p, now)

		case incoming == vo.PaymentStatusWaitingForCapture && p.Method().IsCardChange():
			if err := uc.saveMethod(txCtx, p.UserID(), evt.Object.savedMethodID(), now); err != nil {
				return err
			}
			out.releaseHold = evt.Object.ID
			out.result = common.Succeeded("payment method updated", p.ID())
			return nil

		default:
			out.result = common.Succeeded(fmt.Sprintf("payment status %s recorded", p.Status()), p.ID())
			return nil
		}
	})
	if err != nil {
		uc.logger.Errorw("failed to reconcile payment webhook",
			"provider_payment_id", evt.Object.ID,
			"payment_id", paymentID,
			"error", err,
		)
		return nil, err
	}

	if err := uc.afterCommit(ctx, out); err != nil {
		return nil, err
	}
	uc.logger.Infow("payment webhook reconciled",
		"provider_payment_id", evt.Object.ID,
		"payment_id", paymentID,
		"status", incoming,
		"reason", out.result.Reason,
	)
	return out.result, nil
}

// resolvePayment finds the payment a provider charge belongs to, including
// charges a later retry attempt has replaced. Zero means unrelated.
func (uc *HandleWebhookUseCase) resolvePayment(ctx context.Context, obj WebhookObject) (uint, error) {
	p, err := uc.paymentRepo.GetByProviderPaymentID(ctx, obj.ID)
	if err != nil {
		return 0, err
	}
	if p != nil {
		return p.ID(), nil
	}
	charge, err := uc.findCharge(ctx, obj)
	if err != nil || charge == nil {
		return 0, err
	}
	return charge.PaymentID(), nil
}

// findCharge looks a charge up by provider id, then by the charge id in the
// metadata when the provider id was never recorded.
func (uc *HandleWebhookUseCase) findCharge(ctx context.Context, obj WebhookObject) (*payment.Charge, error) {
	charge, err := uc.paymentRepo.GetChargeByProviderPaymentID(ctx, obj.ID)
	if err != nil || charge != nil {
		return charge, err
	}
	id := obj.chargeID()
	if id == 0 {
		return nil, nil
	}
	charge, err = uc.paymentRepo.GetChargeByID(ctx, id)
	if err != nil || charge == nil {
		return nil, err
	}
	if charge.HasProviderPayment() {
		return nil, nil
	}
	return charge, nil
}

// recordCharge stores the event on the charge it names and reports whether
// the payment row should react to it. A settled charge the payment does not
// point at becomes the payment's charge, unless the payment already succeeded with
// another one; that money is refunded.
func (uc *HandleWebhookUseCase) recordCharge(ctx context.Context, out *paymentOutcome, p *payment.Payment, obj WebhookObject, incoming vo.PaymentStatus, now time.Time) (bool, error) {
	providerPaymentID := obj.ID
	charge, err := uc.findCharge(ctx, obj)
	if err != nil {
		return false, err
	}
	if charge == nil || charge.PaymentID() != p.ID() {
		// Manual, first-charge and card-change payments have a single charge.
		return p.ProviderPaymentID() != nil && *p.ProviderPaymentID() == providerPaymentID, nil
	}

	charge.Attach(providerPaymentID, now)
	charge.ApplyStatus(incoming, now)
	if err := uc.paymentRepo.UpdateCharge(ctx, charge); err != nil {
		return false, err
	}

	if p.ProviderPaymentID() != nil && *p.ProviderPaymentID() == providerPaymentID {
		return true, nil
	}

	if !charge.Status().IsSucceeded() {
		out.result = common.Succeeded(fmt.Sprintf("charge status %s recorded", charge.Status()), p.ID())
		return false, nil
	}

	if p.Status().IsSucceeded() {
		if !charge.IsRefunded() {
			out.refund = &tasks.RefundPaymentPayload{PaymentID: p.ID(), ChargeID: charge.ID(), Reason: duplicateChargeRefundReason}
		}
		uc.logger.Warnw("second charge succeeded for one payment, refunding it",
			"payment_id", p.ID(),
			"charge_id", charge.ID(),
			"provider_payment_id", providerPaymentID,
		)
		out.result = common.Skipped(common.ReasonDuplicateCharge, p.ID())
		return false, nil
	}

	uc.logger.Infow("charge settled before its payment pointed at it, adopting it",
		"payment_id", p.ID(),
		"charge_id", charge.ID(),
		"provider_payment_id", providerPaymentID,
	)
	if err := p.AdoptCharge(providerPaymentID, now); err != nil {
		return false, err
	}
	return true, nil
}

func (uc *HandleWebhookUseCase) applySuccess(ctx context.Context, out *paymentOutcome, sub *subscription.Subscription, p *payment.Payment, now time.Time) error {
	reaction, err := uc.renewal.ApplySucceededPayment(ctx, sub, p, now)
	if err != nil {
		return err
	}

	kind := notification.KindRenewalSucceeded
	switch reaction {
	case subscription.ReactionNone:
		out.result = common.Succeeded("payment recorded", p.ID())
		return nil
	case subscription.ReactionActivateFirstCharge:
		kind = notification.KindSubscriptionActivated
	}

	out.notifications = append(out.notifications, notification.Notification{
		Kind:           kind,
		UserID:         p.UserID(),
		SubscriptionID: sub.ID(),
		PaymentID:      p.ID(),
		Amount:         p.Amount().Amount(),
		Currency:       p.Amount().Currency(),
		EndDate:        sub.EndDate(),
	})
	out.result = common.Finished(common.ReasonRenewed, string(reaction), p.ID())
	return nil
}

func (uc *HandleWebhookUseCase) saveMethod(ctx context.Context, userID uint, methodID string, now time.Time) error {
	if methodID == "" {
		return nil
	}
	u, err := uc.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return apperrors.NewNotFoundError("user not found", fmt.Sprintf("user_id=%d", userID))
	}
	if !u.SavePaymentMethod(methodID, now) {
		return nil
	}
	uc.logger.Infow("saved payment method for user", "user_id", userID)
	return uc.userRepo.Update(ctx, u)
}

// afterCommit fails only when the refund could not be enqueued, so the
// provider re-delivers the event.
func (uc *HandleWebhookUseCase) afterCommit(ctx context.Context, out *paymentOutcome) error {
	if out.releaseHold != "" {
		if _, err := uc.gateway.CancelPayment(ctx, out.releaseHold, uuid.NewString()); err != nil {
			uc.logger.Warnw("failed to release card change hold", "provider_payment_id", out.releaseHold, "error", err)
		}
	}
	if out.refund != nil {
		if err := uc.dispatcher.DispatchRefundPayment(ctx, *out.refund); err != nil {
			uc.logger.Errorw("failed to enqueue refund", "payment_id", out.refund.PaymentID, "charge_id", out.refund.ChargeID, "error", err)
			return err
		}
	}
	for _, n := range out.notifications {
		if err := uc.notifier.Notify(ctx, n); err != nil {
			uc.logger.Warnw("failed to send notification", "kind", n.Kind, "user_id", n.UserID, "error", err)
		}
	}
	return nil
}
