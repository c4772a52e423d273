package handlers

import (
	"context"

	"github.com/orris-inc/autopay/internal/application/common"
	"github.com/orris-inc/autopay/internal/application/subscription/usecases"
	"github.com/orris-inc/autopay/internal/domain/user"
)

type ensureUserUseCase interface {
	Execute(ctx context.Context, externalID string) (*user.User, error)
}

type checkTrialEligibilityUseCase interface {
	Execute(ctx context.Context, userID uint) (bool, error)
}

type createTrialUseCase interface {
	Execute(ctx context.Context, cmd usecases.CreateTrialCommand) (*common.Result, error)
}

type startCardChangeUseCase interface {
	Execute(ctx context.Context, userID uint) (*common.Result, error)
}
