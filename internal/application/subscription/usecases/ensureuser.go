package usecases

import (
	"context"

	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/shared/biztime"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

// EnsureUserUseCase resolves the engine user for an external account id.
type EnsureUserUseCase struct {
	userRepo user.Repository
	clock    biztime.Clock
	logger   logger.Interface
}

func NewEnsureUserUseCase(userRepo user.Repository, clock biztime.Clock, logger logger.Interface) *EnsureUserUseCase {
	return &EnsureUserUseCase{userRepo: userRepo, clock: clock, logger: logger}
}

func (uc *EnsureUserUseCase) Execute(ctx context.Context, externalID string) (*user.User, error) {
	if externalID == "" {
		return nil, apperrors.NewValidationError("external_id is required")
	}
	u, err := uc.userRepo.GetOrCreateByExternalID(ctx, externalID, uc.clock.Now())
	if err != nil {
		uc.logger.Errorw("failed to resolve user", "external_id", externalID, "error", err)
		return nil, err
	}
	return u, nil
}
