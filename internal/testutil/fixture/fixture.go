// Package fixture wires the real repositories over an in-memory database
// together with recording fakes for the outer ports.
package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/payment/paymentgateway"
	"github.com/orris-inc/autopay/internal/application/subscription/services"
	"github.com/orris-inc/autopay/internal/domain/payment"
	"github.com/orris-inc/autopay/internal/domain/promotion"
	"github.com/orris-inc/autopay/internal/domain/subscription"
	subvo "github.com/orris-inc/autopay/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/infrastructure/repository"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	"github.com/orris-inc/autopay/internal/shared/db"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/testutil"
)

// Env is one isolated engine instance.
type Env struct {
	DB            *gorm.DB
	TxManager     *db.TransactionManager
	Users         user.Repository
	Plans         subscription.PlanRepository
	Subscriptions subscription.Repository
	Payments      payment.Repository
	Refunds       payment.RefundRepository
	Promotions    promotion.Repository
	Renewal       *services.RenewalService
	Gateway       *paymentgateway.FakeGateway
	Dispatcher    *testutil.RecordingDispatcher
	Notifier      *testutil.RecordingNotifier
	InFlight      *testutil.MemoryInFlight
	Clock         *biztime.ManualClock
	Settings      autopayment.StaticSettings
	Logger        logger.Interface
}

func New(t *testing.T, now time.Time) *Env {
	t.Helper()

	gdb := testutil.NewSQLiteDB(t)
	log := logger.Discard()
	subs := repository.NewSubscriptionRepository(gdb, log)
	plans := repository.NewPlanRepository(gdb)

	return &Env{
		DB:            gdb,
		TxManager:     db.NewTransactionManager(gdb),
		Users:         repository.NewUserRepository(gdb),
		Plans:         plans,
		Subscriptions: subs,
		Payments:      repository.NewPaymentRepository(gdb),
		Refunds:       repository.NewRefundRepository(gdb),
		Promotions:    repository.NewPromotionRepository(gdb),
		Renewal:       services.NewRenewalService(subs, plans, log),
		Gateway:       paymentgateway.NewFakeGateway(),
		Dispatcher:    &testutil.RecordingDispatcher{},
		Notifier:      &testutil.RecordingNotifier{},
		InFlight:      testutil.NewMemoryInFlight(),
		Clock:         biztime.NewManualClock(now),
		Settings:      autopayment.StaticSettings(autopayment.DefaultSettings()),
		Logger:        log,
	}
}

// SeedUser creates a user, optionally with a saved payment method.
func (e *Env) SeedUser(t *testing.T, externalID string, savedPaymentMethodID string) *user.User {
	t.Helper()
	u, err := user.NewUser(externalID, e.Clock.Now())
	require.NoError(t, err)
	if savedPaymentMethodID != "" {
		u.SavePaymentMethod(savedPaymentMethodID, e.Clock.Now())
	}
	require.NoError(t, e.Users.Create(context.Background(), u))
	return u
}

func (e *Env) SeedPlan(t *testing.T, price int64, durationDays int) *subscription.Plan {
	t.Helper()
	p, err := subscription.NewPlan("plan", decimal.NewFromInt(price), durationDays, e.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, e.Plans.Create(context.Background(), p))
	return p
}

func (e *Env) SeedSubscription(t *testing.T, userID, planID uint, status subvo.SubscriptionStatus, start, end time.Time) *subscription.Subscription {
	t.Helper()
	now := e.Clock.Now()
	s := subscription.ReconstructSubscription(0, userID, planID, status, start, end, nil, nil, now, now)
	require.NoError(t, e.Subscriptions.Create(context.Background(), s))
	return s
}

func (e *Env) Subscription(t *testing.T, id uint) *subscription.Subscription {
	t.Helper()
	s, err := e.Subscriptions.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (e *Env) Payment(t *testing.T, id uint) *payment.Payment {
	t.Helper()
	p, err := e.Payments.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (e *Env) User(t *testing.T, id uint) *user.User {
	t.Helper()
	u, err := e.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

// PaymentsOf lists every payment of a subscription, oldest first.
func (e *Env) PaymentsOf(t *testing.T, subscriptionID uint) []*payment.Payment {
	t.Helper()
	var rows []models.PaymentModel
	require.NoError(t, e.DB.Where("subscription_id = ?", subscriptionID).Order("id").Find(&rows).Error)
	out := make([]*payment.Payment, 0, len(rows))
	for i := range rows {
		p, err := mappers.PaymentToDomain(&rows[i])
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

// RefundCount counts refund rows of a payment.
func (e *Env) RefundCount(t *testing.T, paymentID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(&models.RefundModel{}).Where("payment_id = ?", paymentID).Count(&n).Error)
	return n
}
