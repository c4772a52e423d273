package usecases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	autopaymentusecases "github.com/orris-inc/autopay/internal/application/autopayment/usecases"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/notification"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/domain/payment"
	vo "github.com/orris-inc/autopay/internal/domain/payment/valueobjects"
	subvo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/testutil/fixture"
)

var (
	day       = 24 * time.Hour
	morning   = time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC)
	endsToday = time.Date(2026, 4, 10, 18, 0, 0, 0, time.UTC)
)

type suite struct {
	*fixture.Env
	webhook    *HandleWebhookUseCase
	refund     *RefundPaymentUseCase
	cardChange *StartCardChangeUseCase
	process    *autopaymentusecases.ProcessSubscriptionUseCase
	retry      *autopaymentusecases.RetryPaymentUseCase
}

func newSuite(t *testing.T) *suite {
	env := fixture.New(t, morning)
	return &suite{
		Env: env,
		webhook: NewHandleWebhookUseCase(
			env.TxManager, env.Payments, env.Refunds, env.Subscriptions, env.Users, env.Renewal,
			env.Gateway, env.Dispatcher, env.Notifier, env.Clock, env.Logger,
		),
		refund: NewRefundPaymentUseCase(
			env.TxManager, env.Payments, env.Refunds, env.Gateway, env.Notifier, env.Clock, env.Logger,
		),
		cardChange: NewStartCardChangeUseCase(
			env.TxManager, env.Users, env.Subscriptions, env.Payments, env.Gateway,
			decimal.RequireFromString("1.00"), "RUB", "https://example.test/return", env.Clock, env.Logger,
		),
		process: autopaymentusecases.NewProcessSubscriptionUseCase(
			env.TxManager, env.Subscriptions, env.Plans, env.Users, env.Payments,
			env.Gateway, env.Dispatcher, env.InFlight, env.Notifier, env.Clock, env.Logger,
		),
		retry: autopaymentusecases.NewRetryPaymentUseCase(
			env.TxManager, env.Payments, env.Subscriptions, env.Users, env.Renewal,
			env.Gateway, env.Dispatcher, env.Settings, env.Notifier, env.Clock, env.Logger,
		),
	}
}

func paymentEvent(event, providerID, status string) WebhookEvent {
	return WebhookEvent{Event: event, Object: WebhookObject{ID: providerID, Status: status}}
}

// seedSucceeded stores a captured payment created at paidAt.
func (s *suite) seedSucceeded(t *testing.T, userID, subID uint, method vo.PaymentMethod, providerID string, paidAt time.Time) *payment.Payment {
	t.Helper()
	p := payment.ReconstructPayment(0, userID, subID, &providerID,
		vo.NewMoney(decimal.NewFromInt(100), "RUB"), vo.PaymentStatusSucceeded, method, 1,
		"seed_"+providerID, nil, paidAt, paidAt)
	require.NoError(t, s.Payments.Create(context.Background(), p))
	return p
}

func TestWebhookBeatsRetry(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, endsToday.Add(-30*day), endsToday)
	s.Gateway.QueueOutcomes("pending")

	_, err := s.process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	call, ok := s.Dispatcher.PopRetry()
	require.True(t, ok)

	p := s.PaymentsOf(t, sub.ID())[0]
	providerID := *p.ProviderPaymentID()
	s.Gateway.SetStatus(providerID, "succeeded")

	result, err := s.webhook.Execute(ctx, paymentEvent("payment.succeeded", providerID, "succeeded"))
	require.NoError(t, err)
	assert.Equal(t, common.ReasonRenewed, result.Reason)
	assert.Equal(t, vo.PaymentStatusSucceeded, s.Payment(t, p.ID()).Status())
	assert.Equal(t, endsToday.Add(30*day), s.Subscription(t, sub.ID()).EndDate())

	retried, err := s.retry.Execute(ctx, call.PaymentID, call.Attempt)
	require.NoError(t, err)
	assert.True(t, retried.Final)
	assert.Equal(t, common.ReasonAlreadyDone, retried.Reason)

	assert.Equal(t, endsToday.Add(30*day), s.Subscription(t, sub.ID()).EndDate())
	assert.Len(t, s.Notifier.OfKind(notification.KindRenewalSucceeded), 1)
	assert.Empty(t, s.Dispatcher.Retries)
}

func TestWebhookRedeliveryIsNoOp(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, endsToday.Add(-30*day), endsToday)
	s.Gateway.QueueOutcomes("pending")
	_, err := s.process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	providerID := *s.PaymentsOf(t, sub.ID())[0].ProviderPaymentID()

	evt := paymentEvent("payment.succeeded", providerID, "succeeded")
	_, err = s.webhook.Execute(ctx, evt)
	require.NoError(t, err)
	again, err := s.webhook.Execute(ctx, evt)
	require.NoError(t, err)

	assert.True(t, again.Skipped)
	assert.Equal(t, endsToday.Add(30*day), s.Subscription(t, sub.ID()).EndDate())
	assert.Len(t, s.Notifier.Sent(), 1)
}

func TestWebhookManualLinkReactivates(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, endsToday.Add(-30*day), endsToday)

	_, err := s.process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	require.Equal(t, subvo.StatusCancelled, s.Subscription(t, sub.ID()).Status())
	providerID := *s.PaymentsOf(t, sub.ID())[0].ProviderPaymentID()

	s.Clock.Advance(4 * time.Hour)
	evt := paymentEvent("payment.succeeded", providerID, "succeeded")
	evt.Object.PaymentMethod = &WebhookPaymentMethod{ID: "pm_new", Saved: true}
	result, err := s.webhook.Execute(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, common.ReasonRenewed, result.Reason)

	renewed := s.Subscription(t, sub.ID())
	assert.Equal(t, subvo.StatusActive, renewed.Status())
	assert.Equal(t, endsToday.Add(30*day), renewed.EndDate())
	saved := s.User(t, u.ID()).SavedPaymentMethodID()
	require.NotNil(t, saved)
	assert.Equal(t, "pm_new", *saved)
}

func TestWebhookCanceledIsRecorded(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, endsToday.Add(-30*day), endsToday)
	_, err := s.process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	p := s.PaymentsOf(t, sub.ID())[0]

	_, err = s.webhook.Execute(ctx, paymentEvent("payment.canceled", *p.ProviderPaymentID(), "canceled"))
	require.NoError(t, err)
	assert.Equal(t, vo.PaymentStatusCancelled, s.Payment(t, p.ID()).Status())
	assert.Equal(t, subvo.StatusCancelled, s.Subscription(t, sub.ID()).Status())
}

func TestWebhookUnknownPayment(t *testing.T) {
	s := newSuite(t)

	result, err := s.webhook.Execute(context.Background(), paymentEvent("payment.succeeded", "nope", "succeeded"))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, common.ReasonUnrelated, result.Reason)
}

func TestWebhookNeverRegressesSucceeded(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning.Add(-day), morning.Add(29*day))
	p := s.seedSucceeded(t, u.ID(), sub.ID(), vo.PaymentMethodAutoPayment, "prov_ok", morning.Add(-day))

	_, err := s.webhook.Execute(ctx, paymentEvent("payment.canceled", "prov_ok", "canceled"))
	require.NoError(t, err)
	assert.Equal(t, vo.PaymentStatusSucceeded, s.Payment(t, p.ID()).Status())
}

func TestCardChange(t *testing.T) {
	ctx := context.Background()

	t.Run("requires active subscription", func(t *testing.T) {
		s := newSuite(t)
		u := s.SeedUser(t, "1001", "pm_old")

		_, err := s.cardChange.Execute(ctx, u.ID())
		require.Error(t, err)
		assert.True(t, apperrors.IsValidationError(err))
	})

	t.Run("hold saves credential and is released", func(t *testing.T) {
		s := newSuite(t)
		u := s.SeedUser(t, "1001", "pm_old")
		plan := s.SeedPlan(t, 100, 30)
		sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning.Add(-day), morning.Add(29*day))

		result, err := s.cardChange.Execute(ctx, u.ID())
		require.NoError(t, err)
		assert.NotEmpty(t, result.ConfirmationURL)
		require.Len(t, s.Gateway.Requests, 1)
		assert.False(t, s.Gateway.Requests[0].Capture)
		assert.True(t, s.Gateway.Requests[0].Amount.Equal(decimal.RequireFromString("1.00")))

		p := s.Payment(t, result.IDs[0])
		assert.Equal(t, vo.PaymentMethodCardChange, p.Method())

		evt := paymentEvent("payment.waiting_for_capture", *p.ProviderPaymentID(), "waiting_for_capture")
		evt.Object.PaymentMethod = &WebhookPaymentMethod{ID: "pm_new", Saved: true}
		_, err = s.webhook.Execute(ctx, evt)
		require.NoError(t, err)

		assert.Equal(t, "pm_new", *s.User(t, u.ID()).SavedPaymentMethodID())
		assert.Equal(t, []string{*p.ProviderPaymentID()}, s.Gateway.Cancelled)
		assert.Equal(t, morning.Add(29*day), s.Subscription(t, sub.ID()).EndDate())
	})

	t.Run("captured token is refunded and never extends", func(t *testing.T) {
		s := newSuite(t)
		u := s.SeedUser(t, "1001", "pm_old")
		plan := s.SeedPlan(t, 100, 30)
		sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning.Add(-day), endsToday)

		result, err := s.cardChange.Execute(ctx, u.ID())
		require.NoError(t, err)
		p := s.Payment(t, result.IDs[0])

		evt := paymentEvent("payment.succeeded", *p.ProviderPaymentID(), "succeeded")
		evt.Object.PaymentMethod = &WebhookPaymentMethod{ID: "pm_new", Saved: true}
		_, err = s.webhook.Execute(ctx, evt)
		require.NoError(t, err)

		require.Len(t, s.Dispatcher.Refunds, 1)
		assert.Equal(t, p.ID(), s.Dispatcher.Refunds[0].PaymentID)
		assert.Empty(t, s.Dispatcher.Refunds[0].Amount)
		assert.Equal(t, endsToday, s.Subscription(t, sub.ID()).EndDate())
		assert.Equal(t, "pm_new", *s.User(t, u.ID()).SavedPaymentMethodID())
		assert.Empty(t, s.Notifier.Sent())
	})
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning.Add(-day), morning.Add(29*day))
	p := s.seedSucceeded(t, u.ID(), sub.ID(), vo.PaymentMethodAutoPayment, "prov_1", morning.Add(-day))

	result, err := s.refund.Execute(ctx, RefundPaymentCommand{PaymentID: p.ID(), Reason: "test"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.EqualValues(t, 1, s.RefundCount(t, p.ID()))
	require.Len(t, s.Gateway.Refunds, 1)
	assert.True(t, s.Gateway.Refunds[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.NotEmpty(t, s.Gateway.Refunds[0].IdempotencyKey)
	assert.Len(t, s.Notifier.OfKind(notification.KindRefundIssued), 1)

	_, err = s.refund.Execute(ctx, RefundPaymentCommand{PaymentID: p.ID()})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.EqualValues(t, 1, s.RefundCount(t, p.ID()))
	assert.Len(t, s.Gateway.Refunds, 1)

	over := decimal.NewFromInt(500)
	other := s.seedSucceeded(t, u.ID(), sub.ID(), vo.PaymentMethodAutoPayment, "prov_2", morning)
	_, err = s.refund.Execute(ctx, RefundPaymentCommand{PaymentID: other.ID(), Amount: &over})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestRefundPayment_TrialRejected(t *testing.T) {
	s := newSuite(t)
	u := s.SeedUser(t, "1001", "")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning, morning.Add(7*day))
	trial, err := payment.NewTrialPayment(u.ID(), sub.ID(), "RUB", morning)
	require.NoError(t, err)
	require.NoError(t, s.Payments.Create(context.Background(), trial))

	_, err = s.refund.Execute(context.Background(), RefundPaymentCommand{PaymentID: trial.ID()})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Empty(t, s.Gateway.Refunds)
}

func TestRefundWebhookUpdatesStatus(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning, morning.Add(30*day))
	p := s.seedSucceeded(t, u.ID(), sub.ID(), vo.PaymentMethodManual, "prov_r", morning)

	refund, err := payment.NewRefund(p.ID(), "refund_1", p.Amount(), payment.RefundStatusPending, "", morning)
	require.NoError(t, err)
	require.NoError(t, s.Refunds.Create(ctx, refund))

	result, err := s.webhook.Execute(ctx, WebhookEvent{
		Event:  "refund.succeeded",
		Object: WebhookObject{ID: "refund_1", Status: "succeeded", PaymentID: "prov_r"},
	})
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	stored, err := s.Refunds.GetByProviderRefundID(ctx, "refund_1")
	require.NoError(t, err)
	assert.Equal(t, payment.RefundStatusSucceeded, stored.Status())
}

// lostReplyGateway creates the charge at the provider but drops the reply,
// as a timeout after the request was accepted would.
type lostReplyGateway struct {
	*paymentgateway.FakeGateway
	dropKey string
}

func (g *lostReplyGateway) CreatePayment(ctx context.Context, req paymentgateway.CreatePaymentRequest) (*paymentgateway.PaymentInfo, error) {
	info, err := g.FakeGateway.CreatePayment(ctx, req)
	if err == nil && req.IdempotencyKey == g.dropKey {
		return nil, assert.AnError
	}
	return info, err
}

func TestWebhookMatchesUnansweredChargeByMetadata(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, endsToday.Add(-30*day), endsToday)
	s.Gateway.QueueOutcomes("canceled")

	settings := autopayment.DefaultSettings()
	settings.MaxAttempts = 2
	key := payment.AutoPaymentKey(sub.ID(), morning)
	retry := autopaymentusecases.NewRetryPaymentUseCase(
		s.TxManager, s.Payments, s.Subscriptions, s.Users, s.Renewal,
		&lostReplyGateway{FakeGateway: s.Gateway, dropKey: payment.AttemptKey(key, 2)},
		s.Dispatcher, autopayment.StaticSettings(settings), s.Notifier, s.Clock, s.Logger,
	)

	_, err := s.process.Execute(ctx, sub.ID())
	require.NoError(t, err)
	for {
		call, ok := s.Dispatcher.PopRetry()
		if !ok {
			break
		}
		s.Clock.Advance(call.Delay)
		_, err := retry.Execute(ctx, call.PaymentID, call.Attempt)
		require.NoError(t, err)
	}
	require.Equal(t, subvo.StatusCancelledWaiting, s.Subscription(t, sub.ID()).Status())

	p := s.PaymentsOf(t, sub.ID())[0]
	assert.Nil(t, p.ProviderPaymentID())
	charges, err := s.Payments.ListCharges(ctx, p.ID())
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.False(t, charges[1].HasProviderPayment())

	require.Len(t, s.Gateway.Requests, 2)
	second := s.Gateway.Requests[1]
	assert.Equal(t, fmt.Sprintf("%d", charges[1].ID()), second.Metadata["charge_id"])

	evt := paymentEvent("payment.succeeded", "fake_pay_2", "succeeded")
	evt.Object.Metadata = second.Metadata
	result, err := s.webhook.Execute(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, common.ReasonRenewed, result.Reason)

	settled := s.Payment(t, p.ID())
	assert.Equal(t, vo.PaymentStatusSucceeded, settled.Status())
	require.NotNil(t, settled.ProviderPaymentID())
	assert.Equal(t, "fake_pay_2", *settled.ProviderPaymentID())

	renewed := s.Subscription(t, sub.ID())
	assert.Equal(t, subvo.StatusActive, renewed.Status())
	assert.True(t, renewed.EndDate().After(endsToday))
	assert.Empty(t, s.Dispatcher.Refunds)
}

func TestWebhookDuplicateChargeIsRefunded(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	u := s.SeedUser(t, "1001", "pm_1")
	plan := s.SeedPlan(t, 100, 30)
	sub := s.SeedSubscription(t, u.ID(), plan.ID(), subvo.StatusActive, morning.Add(-day), morning.Add(29*day))
	p := s.seedSucceeded(t, u.ID(), sub.ID(), vo.PaymentMethodAutoPayment, "prov_2", morning)

	stray, err := payment.NewCharge(p.ID(), 1, "stray_key", morning)
	require.NoError(t, err)
	stray.Attach("prov_1", morning)
	require.NoError(t, s.Payments.CreateCharge(ctx, stray))

	result, err := s.webhook.Execute(ctx, paymentEvent("payment.succeeded", "prov_1", "succeeded"))
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, common.ReasonDuplicateCharge, result.Reason)
	assert.Equal(t, morning.Add(29*day), s.Subscription(t, sub.ID()).EndDate())

	require.Len(t, s.Dispatcher.Refunds, 1)
	refund := s.Dispatcher.Refunds[0]
	assert.Equal(t, stray.ID(), refund.ChargeID)

	_, err = s.refund.Execute(ctx, RefundPaymentCommand{PaymentID: refund.PaymentID, ChargeID: refund.ChargeID, Reason: refund.Reason})
	require.NoError(t, err)
	require.Len(t, s.Gateway.Refunds, 1)
	assert.Equal(t, "prov_1", s.Gateway.Refunds[0].ProviderPaymentID)
	assert.Zero(t, s.RefundCount(t, p.ID()))

	stored, err := s.Payments.GetChargeByID(ctx, stray.ID())
	require.NoError(t, err)
	assert.True(t, stored.IsRefunded())

	_, err = s.refund.Execute(ctx, RefundPaymentCommand{PaymentID: p.ID(), ChargeID: stray.ID()})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
	assert.Len(t, s.Gateway.Refunds, 1)
}
