package handlers

import (
	"context"

	"github.com/orris-inc/autopay/internal/application/common"
	promotionUsecases "github.com/orris-inc/autopay/internal/application/promotion/usecases"
	"github.com/orris-inc/autopay/internal/application/subscription/usecases"
)

// Use case interfaces for SubscriptionHandler

type createSubscriptionWithPaymentUseCase interface {
	Execute(ctx context.Context, cmd usecases.CreateSubscriptionWithPaymentCommand) (*common.Result, error)
}

type cancelSubscriptionUseCase interface {
	Execute(ctx context.Context, cmd usecases.CancelSubscriptionCommand) (*common.Result, error)
}

type applyPromotionUseCase interface {
	Execute(ctx context.Context, cmd promotionUsecases.ApplyPromotionCommand) (*common.Result, error)
}
