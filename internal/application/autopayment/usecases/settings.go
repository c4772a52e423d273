package usecases

import (
	"context"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type GetSettingsUseCase struct {
	store  autopayment.SettingsStore
	logger logger.Interface
}

func NewGetSettingsUseCase(store autopayment.SettingsStore, logger logger.Interface) *GetSettingsUseCase {
	return &GetSettingsUseCase{store: store, logger: logger}
}

func (uc *GetSettingsUseCase) Execute(ctx context.Context) (autopayment.Settings, error) {
	settings, err := uc.store.Load(ctx)
	if err != nil {
		uc.logger.Errorw("failed to load auto payment settings", "error", err)
		return autopayment.Settings{}, err
	}
	return settings, nil
}

// UpdateSettingsUseCase validates and stores runtime settings, then
// announces the change so schedulers reschedule the collector and sweeper.
// A lost announcement is picked up by the scheduler's periodic refresh.
type UpdateSettingsUseCase struct {
	store     autopayment.SettingsStore
	publisher autopayment.SettingsChangePublisher
	logger    logger.Interface
}

func NewUpdateSettingsUseCase(
	store autopayment.SettingsStore,
	publisher autopayment.SettingsChangePublisher,
	logger logger.Interface,
) *UpdateSettingsUseCase {
	return &UpdateSettingsUseCase{store: store, publisher: publisher, logger: logger}
}

func (uc *UpdateSettingsUseCase) Execute(ctx context.Context, settings autopayment.Settings) (autopayment.Settings, error) {
	if err := settings.Validate(); err != nil {
		return autopayment.Settings{}, apperrors.NewValidationError("invalid auto payment settings", err.Error())
	}
	if err := uc.store.Save(ctx, settings); err != nil {
		uc.logger.Errorw("failed to save auto payment settings", "error", err)
		return autopayment.Settings{}, err
	}
	uc.logger.Infow("auto payment settings updated",
		"max_attempts", settings.MaxAttempts,
		"retry_interval_seconds", settings.RetryIntervalSeconds,
		"redis_ttl_hours", settings.RedisTTLHours,
	)

	if err := uc.publisher.PublishSettingsChanged(ctx, settings.CollectorCron(), settings.SweeperCron()); err != nil {
		uc.logger.Warnw("failed to announce settings change, schedulers will pick it up on refresh", "error", err)
	}
	return settings, nil
}
