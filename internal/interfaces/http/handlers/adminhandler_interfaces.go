package handlers

import (
	"context"
	"time"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/infrastructure/taskqueue"
)

type batchUseCase interface {
	Execute(ctx context.Context) (*common.Result, error)
}

type processSubscriptionUseCase interface {
	Execute(ctx context.Context, subscriptionID uint) (*common.Result, error)
}

type retryPaymentUseCase interface {
	Execute(ctx context.Context, paymentID uint, attempt int) (*common.Result, error)
}

type getSettingsUseCase interface {
	Execute(ctx context.Context) (autopayment.Settings, error)
}

type updateSettingsUseCase interface {
	Execute(ctx context.Context, settings autopayment.Settings) (autopayment.Settings, error)
}

type listInFlightUseCase interface {
	Execute(ctx context.Context, day time.Time) ([]uint, error)
}

type taskQueueInspector interface {
	Stats(ctx context.Context) (taskqueue.Stats, error)
	DeadTasks(ctx context.Context, limit int64) ([]taskqueue.Task, error)
}
