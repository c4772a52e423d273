package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/infrastructure/taskqueue"
	"github.com/orris-inc/autopay/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/autopay/internal/shared/errors"
)

type mockBatchUC struct {
	result *common.Result
	err    error
	calls  int
}

func (m *mockBatchUC) Execute(ctx context.Context) (*common.Result, error) {
	m.calls++
	return m.result, m.err
}

type mockProcessSubscriptionUC struct {
	result *common.Result
	err    error
	got    uint
}

func (m *mockProcessSubscriptionUC) Execute(ctx context.Context, subscriptionID uint) (*common.Result, error) {
	m.got = subscriptionID
	return m.result, m.err
}

type mockRetryPaymentUC struct {
	result     *common.Result
	err        error
	gotPayment uint
	gotAttempt int
}

func (m *mockRetryPaymentUC) Execute(ctx context.Context, paymentID uint, attempt int) (*common.Result, error) {
	m.gotPayment = paymentID
	m.gotAttempt = attempt
	return m.result, m.err
}

type mockGetSettingsUC struct {
	settings autopayment.Settings
	err      error
}

func (m *mockGetSettingsUC) Execute(ctx context.Context) (autopayment.Settings, error) {
	return m.settings, m.err
}

type mockUpdateSettingsUC struct {
	err error
	got *autopayment.Settings
}

func (m *mockUpdateSettingsUC) Execute(ctx context.Context, settings autopayment.Settings) (autopayment.Settings, error) {
	m.got = &settings
	if m.err != nil {
		return autopayment.Settings{}, m.err
	}
	return settings, nil
}

type mockListInFlightUC struct {
	ids []uint
	err error
	got time.Time
}

func (m *mockListInFlightUC) Execute(ctx context.Context, day time.Time) ([]uint, error) {
	m.got = day
	return m.ids, m.err
}

type mockQueueInspector struct {
	stats     taskqueue.Stats
	dead      []taskqueue.Task
	err       error
	lastLimit int64
}

func (m *mockQueueInspector) Stats(ctx context.Context) (taskqueue.Stats, error) {
	return m.stats, m.err
}

func (m *mockQueueInspector) DeadTasks(ctx context.Context, limit int64) ([]taskqueue.Task, error) {
	m.lastLimit = limit
	return m.dead, m.err
}

type adminMocks struct {
	collect  *mockBatchUC
	sweep    *mockBatchUC
	process  *mockProcessSubscriptionUC
	retry    *mockRetryPaymentUC
	get      *mockGetSettingsUC
	update   *mockUpdateSettingsUC
	inFlight *mockListInFlightUC
	queue    *mockQueueInspector
}

func newTestAdminHandler() (*AdminHandler, *adminMocks) {
	m := &adminMocks{
		collect:  &mockBatchUC{result: common.Succeeded("collected 2 subscriptions", 1, 2)},
		sweep:    &mockBatchUC{result: common.Succeeded("cancelled 1 waiting subscriptions", 3)},
		process:  &mockProcessSubscriptionUC{result: common.Succeeded("payment created", 4)},
		retry:    &mockRetryPaymentUC{result: common.Finished(common.ReasonRenewed, "subscription renewed", 5)},
		get:      &mockGetSettingsUC{settings: autopayment.DefaultSettings()},
		update:   &mockUpdateSettingsUC{},
		inFlight: &mockListInFlightUC{},
		queue:    &mockQueueInspector{},
	}
	h := NewAdminHandler(m.collect, m.sweep, m.process, m.retry, m.get, m.update, m.inFlight, m.queue, testutil.NewMockLogger())
	return h, m
}

func TestAdminHandler_CollectAndSweep(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodPost, "/admin/auto-payment/collect", nil)
	h.Collect(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, m.collect.calls)

	c, w = testutil.NewTestContext(http.MethodPost, "/admin/auto-payment/sweep", nil)
	h.Sweep(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, m.sweep.calls)

	m.sweep.err = stderrors.New("redis down")
	c, w = testutil.NewTestContext(http.MethodPost, "/admin/auto-payment/sweep", nil)
	h.Sweep(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAdminHandler_ProcessSubscription(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodPost, "/admin/subscriptions/4/process", nil)
	testutil.SetURLParam(c, "id", "4")
	h.ProcessSubscription(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(4), m.process.got)
}

func TestAdminHandler_RetryPayment(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodPost, "/admin/payments/5/retry", RetryPaymentRequest{Attempt: 2})
	testutil.SetURLParam(c, "id", "5")
	h.RetryPayment(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint(5), m.retry.gotPayment)
	assert.Equal(t, 2, m.retry.gotAttempt)
	assert.Contains(t, w.Body.String(), `"final":true`)
}

func TestAdminHandler_RetryPayment_MissingAttempt(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodPost, "/admin/payments/5/retry", map[string]int{"attempt": 0})
	testutil.SetURLParam(c, "id", "5")
	h.RetryPayment(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, m.retry.gotPayment)
}

func TestAdminHandler_Settings(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodGet, "/admin/auto-payment/settings", nil)
	h.GetSettings(c)
	require.Equal(t, http.StatusOK, w.Code)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	var got autopayment.Settings
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, autopayment.DefaultSettings(), got)

	updated := autopayment.DefaultSettings()
	updated.MaxAttempts = 5
	c, w = testutil.NewTestContext(http.MethodPut, "/admin/auto-payment/settings", updated)
	h.UpdateSettings(c)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, m.update.got)
	assert.Equal(t, 5, m.update.got.MaxAttempts)
}

func TestAdminHandler_UpdateSettings_Rejected(t *testing.T) {
	h, m := newTestAdminHandler()
	m.update.err = errors.NewValidationError("invalid auto payment settings", "redis_ttl_hours")

	bad := autopayment.DefaultSettings()
	bad.RedisTTLHours = 500
	c, w := testutil.NewTestContext(http.MethodPut, "/admin/auto-payment/settings", bad)
	h.UpdateSettings(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_ListInFlight(t *testing.T) {
	h, m := newTestAdminHandler()
	m.inFlight.ids = []uint{3, 8}

	c, w := testutil.NewTestContext(http.MethodGet, "/admin/auto-payment/in-flight", nil)
	testutil.SetQueryParams(c, map[string]string{"date": "2026-05-10"})
	h.ListInFlight(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), m.inFlight.got)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	var data InFlightResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, InFlightResponse{Date: "2026-05-10", SubscriptionIDs: []uint{3, 8}}, data)
}

func TestAdminHandler_ListInFlight_TodayAndEmpty(t *testing.T) {
	h, m := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodGet, "/admin/auto-payment/in-flight", nil)
	h.ListInFlight(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, m.inFlight.got.IsZero())
	assert.Contains(t, w.Body.String(), `"subscription_ids":[]`)
}

func TestAdminHandler_ListInFlight_BadDate(t *testing.T) {
	h, _ := newTestAdminHandler()

	c, w := testutil.NewTestContext(http.MethodGet, "/admin/auto-payment/in-flight", nil)
	testutil.SetQueryParams(c, map[string]string{"date": "10/05/2026"})
	h.ListInFlight(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_TaskQueue(t *testing.T) {
	h, m := newTestAdminHandler()
	m.queue.stats = taskqueue.Stats{Ready: 2, Delayed: 1, Dead: 1}
	m.queue.dead = []taskqueue.Task{{ID: "t1", Type: "process_subscription", Retries: 3, LastError: "boom"}}

	c, w := testutil.NewTestContext(http.MethodGet, "/admin/tasks/stats", nil)
	h.TaskStats(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready":2`)

	c, w = testutil.NewTestContext(http.MethodGet, "/admin/tasks/dead", nil)
	h.DeadTasks(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(defaultDeadTaskLimit), m.queue.lastLimit)
	assert.Contains(t, w.Body.String(), `"last_error":"boom"`)

	c, w = testutil.NewTestContext(http.MethodGet, "/admin/tasks/dead", nil)
	testutil.SetQueryParams(c, map[string]string{"limit": "1000"})
	h.DeadTasks(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
