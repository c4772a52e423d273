package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/common"
	promotionUsecases "github.com/orris-inc/autopay/internal/application/promotion/usecases"
	"github.com/orris-inc/autopay/internal/application/subscription/usecases"
	"github.com/orris-inc/autopay/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/autopay/internal/shared/errors"
)

type mockCreateSubscriptionUC struct {
	result *common.Result
	err    error
	got    *usecases.CreateSubscriptionWithPaymentCommand
}

func (m *mockCreateSubscriptionUC) Execute(ctx context.Context, cmd usecases.CreateSubscriptionWithPaymentCommand) (*common.Result, error) {
	m.got = &cmd
	return m.result, m.err
}

type mockCancelSubscriptionUC struct {
	result *common.Result
	err    error
	got    *usecases.CancelSubscriptionCommand
}

func (m *mockCancelSubscriptionUC) Execute(ctx context.Context, cmd usecases.CancelSubscriptionCommand) (*common.Result, error) {
	m.got = &cmd
	return m.result, m.err
}

type mockApplyPromotionUC struct {
	result *common.Result
	err    error
	got    *promotionUsecases.ApplyPromotionCommand
}

func (m *mockApplyPromotionUC) Execute(ctx context.Context, cmd promotionUsecases.ApplyPromotionCommand) (*common.Result, error) {
	m.got = &cmd
	return m.result, m.err
}

func TestSubscriptionHandler_Create_Success(t *testing.T) {
	result := common.Succeeded("payment created", 3, 9)
	result.ConfirmationURL = "https://pay.example/confirm/9"
	uc := &mockCreateSubscriptionUC{result: result}
	handler := NewSubscriptionHandler(uc, nil, nil, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{
		ExternalID: "100200",
		PlanID:     2,
	})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, uc.got)
	assert.Equal(t, "100200", uc.got.ExternalID)
	assert.Equal(t, uint(2), uc.got.PlanID)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, string(resp.Data), "https://pay.example/confirm/9")
}

func TestSubscriptionHandler_Create_InvalidRequest(t *testing.T) {
	uc := &mockCreateSubscriptionUC{}
	handler := NewSubscriptionHandler(uc, nil, nil, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions", map[string]any{"plan_id": 2})

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, uc.got)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Details, "external_id is required")
}

func TestSubscriptionHandler_Create_Conflict(t *testing.T) {
	uc := &mockCreateSubscriptionUC{err: errors.NewConflictError("user already has an active subscription")}
	handler := NewSubscriptionHandler(uc, nil, nil, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions", CreateSubscriptionRequest{
		ExternalID: "100200",
		PlanID:     2,
	})

	handler.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubscriptionHandler_Cancel(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantRefund bool
	}{
		{"no body", nil, false},
		{"with refund", CancelSubscriptionRequest{WithRefund: true}, true},
		{"without refund", CancelSubscriptionRequest{WithRefund: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockCancelSubscriptionUC{result: common.Succeeded("subscription cancelled", 5)}
			handler := NewSubscriptionHandler(nil, uc, nil, testutil.NewMockLogger())

			c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/5/cancel", tt.body)
			testutil.SetURLParam(c, "id", "5")

			handler.Cancel(c)

			assert.Equal(t, http.StatusOK, w.Code)
			require.NotNil(t, uc.got)
			assert.Equal(t, uint(5), uc.got.SubscriptionID)
			assert.Equal(t, tt.wantRefund, uc.got.WithRefund)
		})
	}
}

func TestSubscriptionHandler_Cancel_InvalidID(t *testing.T) {
	uc := &mockCancelSubscriptionUC{}
	handler := NewSubscriptionHandler(nil, uc, nil, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/abc/cancel", nil)
	testutil.SetURLParam(c, "id", "abc")

	handler.Cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, uc.got)
}

func TestSubscriptionHandler_Cancel_NotFound(t *testing.T) {
	uc := &mockCancelSubscriptionUC{err: errors.NewNotFoundError("subscription not found")}
	handler := NewSubscriptionHandler(nil, uc, nil, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/404/cancel", nil)
	testutil.SetURLParam(c, "id", "404")

	handler.Cancel(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptionHandler_ApplyPromotion(t *testing.T) {
	uc := &mockApplyPromotionUC{result: common.Succeeded("promotion applied", 8)}
	handler := NewSubscriptionHandler(nil, nil, uc, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/8/promotions", ApplyPromotionRequest{Code: "SPRING"})
	testutil.SetURLParam(c, "id", "8")

	handler.ApplyPromotion(c)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, uc.got)
	assert.Equal(t, uint(8), uc.got.SubscriptionID)
	assert.Equal(t, "SPRING", uc.got.Code)
}

func TestSubscriptionHandler_ApplyPromotion_SkippedIsOK(t *testing.T) {
	uc := &mockApplyPromotionUC{result: common.Skipped(common.ReasonAlreadyDone, 8)}
	handler := NewSubscriptionHandler(nil, nil, uc, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/8/promotions", ApplyPromotionRequest{Code: "SPRING"})
	testutil.SetURLParam(c, "id", "8")

	handler.ApplyPromotion(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"skipped":true`)
}

func TestSubscriptionHandler_ApplyPromotion_MissingCode(t *testing.T) {
	uc := &mockApplyPromotionUC{}
	handler := NewSubscriptionHandler(nil, nil, uc, testutil.NewMockLogger())

	c, w := testutil.NewTestContext(http.MethodPost, "/api/subscriptions/8/promotions", map[string]string{})
	testutil.SetURLParam(c, "id", "8")

	handler.ApplyPromotion(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, uc.got)
}
