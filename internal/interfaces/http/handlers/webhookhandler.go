package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	paymentUsecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	handleWebhookUC handleWebhookUseCase
	logger          logger.Interface
}

func NewWebhookHandler(handleWebhookUC handleWebhookUseCase, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		handleWebhookUC: handleWebhookUC,
		logger:          logger,
	}
}

// HandlePaymentWebhook answers 200 for every event it understood, including
// ignored and already-applied ones. Infrastructure failures answer 500 so the
// provider redelivers.
//
// @Summary Payment provider webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param event body paymentUsecases.WebhookEvent true "Provider event"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /webhooks/payment-provider [post]
func (h *WebhookHandler) HandlePaymentWebhook(c *gin.Context) {
	var evt paymentUsecases.WebhookEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		h.logger.Warnw("invalid payment webhook payload", "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	result, err := h.handleWebhookUC.Execute(c.Request.Context(), evt)
	if err != nil {
		h.logger.Errorw("failed to handle payment webhook",
			"event", evt.Event,
			"object_id", evt.Object.ID,
			"error", err,
		)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}
