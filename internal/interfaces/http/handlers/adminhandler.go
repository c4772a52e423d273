package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

const (
	defaultDeadTaskLimit = 50
	maxDeadTaskLimit     = 500
)

// AdminHandler triggers renewal jobs by hand and manages runtime settings.
type AdminHandler struct {
	collectUC             batchUseCase
	sweepUC               batchUseCase
	processSubscriptionUC processSubscriptionUseCase
	retryPaymentUC        retryPaymentUseCase
	getSettingsUC         getSettingsUseCase
	updateSettingsUC      updateSettingsUseCase
	listInFlightUC        listInFlightUseCase
	queue                 taskQueueInspector
	logger                logger.Interface
}

func NewAdminHandler(
	collectUC batchUseCase,
	sweepUC batchUseCase,
	processSubscriptionUC processSubscriptionUseCase,
	retryPaymentUC retryPaymentUseCase,
	getSettingsUC getSettingsUseCase,
	updateSettingsUC updateSettingsUseCase,
	listInFlightUC listInFlightUseCase,
	queue taskQueueInspector,
	logger logger.Interface,
) *AdminHandler {
	return &AdminHandler{
		collectUC:             collectUC,
		sweepUC:               sweepUC,
		processSubscriptionUC: processSubscriptionUC,
		retryPaymentUC:        retryPaymentUC,
		getSettingsUC:         getSettingsUC,
		updateSettingsUC:      updateSettingsUC,
		listInFlightUC:        listInFlightUC,
		queue:                 queue,
		logger:                logger,
	}
}

type RetryPaymentRequest struct {
	Attempt int `json:"attempt" binding:"required,min=1"`
}

type InFlightResponse struct {
	Date            string `json:"date,omitempty"`
	SubscriptionIDs []uint `json:"subscription_ids"`
}

// Collect handles POST /admin/auto-payment/collect
//
// @Summary Run the renewal collector
// @Description Finds subscriptions ending today and enqueues one processing task per subscription
// @Tags admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/auto-payment/collect [post]
func (h *AdminHandler) Collect(c *gin.Context) {
	h.logger.Infow("manual collect triggered", "client_ip", c.ClientIP())
	result, err := h.collectUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// Sweep handles POST /admin/auto-payment/sweep
//
// @Summary Run the expiry sweep
// @Description Expires subscriptions that ended before today and have no renewal in flight
// @Tags admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/auto-payment/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	h.logger.Infow("manual sweep triggered", "client_ip", c.ClientIP())
	result, err := h.sweepUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// ProcessSubscription handles POST /admin/subscriptions/:id/process
//
// @Summary Process one subscription renewal
// @Tags admin
// @Produce json
// @Security AdminToken
// @Param id path int true "Subscription ID"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/subscriptions/{id}/process [post]
func (h *AdminHandler) ProcessSubscription(c *gin.Context) {
	subscriptionID, err := utils.ParseUintParam(c, "id", "subscription")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.processSubscriptionUC.Execute(c.Request.Context(), subscriptionID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// RetryPayment handles POST /admin/payments/:id/retry
//
// @Summary Run one retry attempt for a renewal payment
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param id path int true "Payment ID"
// @Param request body RetryPaymentRequest true "Attempt number"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/payments/{id}/retry [post]
func (h *AdminHandler) RetryPayment(c *gin.Context) {
	paymentID, err := utils.ParseUintParam(c, "id", "payment")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req RetryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for retry payment", "payment_id", paymentID, "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	result, err := h.retryPaymentUC.Execute(c.Request.Context(), paymentID, req.Attempt)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// GetSettings handles GET /admin/auto-payment/settings
//
// @Summary Get auto-payment settings
// @Tags admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} utils.APIResponse{data=autopayment.Settings}
// @Failure 500 {object} utils.APIResponse
// @Router /admin/auto-payment/settings [get]
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.getSettingsUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", settings)
}

// UpdateSettings handles PUT /admin/auto-payment/settings
//
// @Summary Update auto-payment settings
// @Tags admin
// @Accept json
// @Produce json
// @Security AdminToken
// @Param settings body autopayment.Settings true "New settings"
// @Success 200 {object} utils.APIResponse{data=autopayment.Settings}
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/auto-payment/settings [put]
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req autopayment.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for update settings", "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	settings, err := h.updateSettingsUC.Execute(c.Request.Context(), req)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Settings updated", settings)
}

// ListInFlight reads the advisory set for ?date=YYYY-MM-DD, today by default.
//
// @Summary List subscriptions with a renewal in flight
// @Tags admin
// @Produce json
// @Security AdminToken
// @Param date query string false "Day in YYYY-MM-DD"
// @Success 200 {object} utils.APIResponse{data=InFlightResponse}
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/auto-payment/in-flight [get]
func (h *AdminHandler) ListInFlight(c *gin.Context) {
	var day time.Time
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
		if err != nil {
			utils.ErrorResponseWithError(c, errors.NewBadRequestError("invalid date, expected YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	ids, err := h.listInFlightUC.Execute(c.Request.Context(), day)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	resp := InFlightResponse{SubscriptionIDs: ids}
	if !day.IsZero() {
		resp.Date = day.Format(time.DateOnly)
	}
	if resp.SubscriptionIDs == nil {
		resp.SubscriptionIDs = []uint{}
	}
	utils.SuccessResponse(c, http.StatusOK, "", resp)
}

// @Summary Task queue statistics
// @Tags admin
// @Produce json
// @Security AdminToken
// @Success 200 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/tasks/stats [get]
func (h *AdminHandler) TaskStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to read task queue stats", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

// @Summary List dead-lettered tasks
// @Tags admin
// @Produce json
// @Security AdminToken
// @Param limit query int false "Max entries (1-500)"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 500 {object} utils.APIResponse
// @Router /admin/tasks/dead [get]
func (h *AdminHandler) DeadTasks(c *gin.Context) {
	limit := defaultDeadTaskLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxDeadTaskLimit {
			utils.ErrorResponseWithError(c, errors.NewBadRequestError("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	deadTasks, err := h.queue.DeadTasks(c.Request.Context(), int64(limit))
	if err != nil {
		h.logger.Errorw("failed to read dead tasks", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", deadTasks)
}
