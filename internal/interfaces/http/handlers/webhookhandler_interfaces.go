package handlers

import (
	"context"

	"github.com/orris-inc/autopay/internal/application/common"
	paymentUsecases "github.com/orris-inc/autopay/internal/application/payment/usecases"
)

type handleWebhookUseCase interface {
	Execute(ctx context.Context, evt paymentUsecases.WebhookEvent) (*common.Result, error)
}
