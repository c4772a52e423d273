package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/autopay/internal/application/subscription/usecases"
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

// UserHandler exposes user registration, trials and card changes.
type UserHandler struct {
	ensureUserUC       ensureUserUseCase
	trialEligibilityUC checkTrialEligibilityUseCase
	createTrialUC      createTrialUseCase
	cardChangeUC       startCardChangeUseCase
	logger             logger.Interface
}

func NewUserHandler(
	ensureUserUC ensureUserUseCase,
	trialEligibilityUC checkTrialEligibilityUseCase,
	createTrialUC createTrialUseCase,
	cardChangeUC startCardChangeUseCase,
	logger logger.Interface,
) *UserHandler {
	return &UserHandler{
		ensureUserUC:       ensureUserUC,
		trialEligibilityUC: trialEligibilityUC,
		createTrialUC:      createTrialUC,
		cardChangeUC:       cardChangeUC,
		logger:             logger,
	}
}

type EnsureUserRequest struct {
	ExternalID string `json:"external_id" binding:"required,max=64"`
}

type CreateTrialRequest struct {
	PlanID uint `json:"plan_id" binding:"required,min=1"`
}

type UserResponse struct {
	ID                    uint      `json:"id"`
	ExternalID            string    `json:"external_id"`
	HasSavedPaymentMethod bool      `json:"has_saved_payment_method"`
	CreatedAt             time.Time `json:"created_at"`
}

type TrialEligibilityResponse struct {
	UserID   uint `json:"user_id"`
	Eligible bool `json:"eligible"`
}

func toUserResponse(u *user.User) *UserResponse {
	return &UserResponse{
		ID:                    u.ID(),
		ExternalID:            u.ExternalID(),
		HasSavedPaymentMethod: u.HasSavedPaymentMethod(),
		CreatedAt:             u.CreatedAt(),
	}
}

// EnsureUser returns the user for an external id, creating it on first sight.
//
// @Summary Register or fetch a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body EnsureUserRequest true "External identity"
// @Success 200 {object} utils.APIResponse{data=UserResponse}
// @Failure 400 {object} utils.APIResponse
// @Router /api/users [post]
func (h *UserHandler) EnsureUser(c *gin.Context) {
	var req EnsureUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for ensure user", "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	u, err := h.ensureUserUC.Execute(c.Request.Context(), req.ExternalID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toUserResponse(u))
}

// TrialEligibility handles GET /api/users/:id/trial-eligibility
//
// @Summary Check trial eligibility
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.APIResponse{data=TrialEligibilityResponse}
// @Failure 404 {object} utils.APIResponse
// @Router /api/users/{id}/trial-eligibility [get]
func (h *UserHandler) TrialEligibility(c *gin.Context) {
	userID, err := utils.ParseUintParam(c, "id", "user")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	eligible, err := h.trialEligibilityUC.Execute(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", TrialEligibilityResponse{UserID: userID, Eligible: eligible})
}

// CreateTrial handles POST /api/users/:id/trial
//
// @Summary Start a free trial
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body CreateTrialRequest true "Trial plan"
// @Success 201 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /api/users/{id}/trial [post]
func (h *UserHandler) CreateTrial(c *gin.Context) {
	userID, err := utils.ParseUintParam(c, "id", "user")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req CreateTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create trial", "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, utils.BindError(err))
		return
	}

	result, err := h.createTrialUC.Execute(c.Request.Context(), usecases.CreateTrialCommand{
		UserID: userID,
		PlanID: req.PlanID,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, result.Message)
}

// StartCardChange places a refundable hold that saves a new card.
//
// @Summary Start a card change
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /api/users/{id}/card-change [post]
func (h *UserHandler) StartCardChange(c *gin.Context) {
	userID, err := utils.ParseUintParam(c, "id", "user")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.cardChangeUC.Execute(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}
