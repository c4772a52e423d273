package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	promotionUsecases "github.com/orris-inc/autopay/internal/application/promotion/usecases"
	"github.com/orris-inc/autopay/internal/application/subscription/usecases"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

// SubscriptionHandler handles user-initiated subscription operations.
type SubscriptionHandler struct {
	createUC         createSubscriptionWithPaymentUseCase
	cancelUC         cancelSubscriptionUseCase
	applyPromotionUC applyPromotionUseCase
	logger           logger.Interface
}

func NewSubscriptionHandler(
	createUC createSubscriptionWithPaymentUseCase,
	cancelUC cancelSubscriptionUseCase,
	applyPromotionUC applyPromotionUseCase,
	logger logger.Interface,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		createUC:         createUC,
		cancelUC:         cancelUC,
		applyPromotionUC: applyPromotionUC,
		logger:           logger,
	}
}

type CreateSubscriptionRequest struct {
	ExternalID string `json:"external_id" binding:"required,max=64"`
	PlanID     uint   `json:"plan_id" binding:"required,min=1"`
}

type CancelSubscriptionRequest struct {
	WithRefund bool `json:"with_refund"`
}

type ApplyPromotionRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// Create starts a payment-first subscription and returns the confirmation URL.
//
// @Summary Create a subscription
// @Description Opens a first payment with the provider and returns its confirmation URL
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param request body CreateSubscriptionRequest true "Subscription data"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /api/subscriptions [post]
func (h *SubscriptionHandler) Create(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create subscription", "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	result, err := h.createUC.Execute(c.Request.Context(), usecases.CreateSubscriptionWithPaymentCommand{
		ExternalID: req.ExternalID,
		PlanID:     req.PlanID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, result.Message)
}

// Cancel handles POST /api/subscriptions/:id/cancel
//
// @Summary Cancel a subscription
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path int true "Subscription ID"
// @Param request body CancelSubscriptionRequest false "Cancel options"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /api/subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	subscriptionID, err := utils.ParseUintParam(c, "id", "subscription")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req CancelSubscriptionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warnw("invalid request body for cancel subscription",
				"subscription_id", subscriptionID,
				"error", err)
			utils.ErrorResponseWithError(c, utils.BindError(err))
			return
		}
	}

	result, err := h.cancelUC.Execute(c.Request.Context(), usecases.CancelSubscriptionCommand{
		SubscriptionID: subscriptionID,
		WithRefund:     req.WithRefund,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// ApplyPromotion handles POST /api/subscriptions/:id/promotions
//
// @Summary Apply a promotion code
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param id path int true "Subscription ID"
// @Param request body ApplyPromotionRequest true "Promotion code"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /api/subscriptions/{id}/promotions [post]
func (h *SubscriptionHandler) ApplyPromotion(c *gin.Context) {
	subscriptionID, err := utils.ParseUintParam(c, "id", "subscription")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req ApplyPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for apply promotion",
			"subscription_id", subscriptionID,
			"error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	result, err := h.applyPromotionUC.Execute(c.Request.Context(), promotionUsecases.ApplyPromotionCommand{
		SubscriptionID: subscriptionID,
		Code:           req.Code,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}
