package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/application/autopayment"
	apperrors "github.com/orris-inc/autopay/internal/shared/errors"
	"github.com/orris-inc/autopay/internal/shared/logger"
)

type memorySettingsStore struct {
	current autopayment.Settings
	saves   int
}

func (s *memorySettingsStore) Load(context.Context) (autopayment.Settings, error) {
	return s.current, nil
}

func (s *memorySettingsStore) Save(_ context.Context, settings autopayment.Settings) error {
	s.current = settings
	s.saves++
	return nil
}

type recordingPublisher struct {
	crons [][2]string
	err   error
}

func (p *recordingPublisher) PublishSettingsChanged(_ context.Context, collectorCron, sweeperCron string) error {
	p.crons = append(p.crons, [2]string{collectorCron, sweeperCron})
	return p.err
}

func validSettings() autopayment.Settings {
	return autopayment.Settings{
		StartHour:            1,
		StartMinute:          15,
		EndHour:              22,
		EndMinute:            30,
		MaxAttempts:          3,
		RetryIntervalSeconds: 60,
		RedisTTLHours:        48,
		TrialPeriodDays:      7,
	}
}

func TestUpdateSettings_SavesAndAnnounces(t *testing.T) {
	store := &memorySettingsStore{}
	pub := &recordingPublisher{}
	uc := NewUpdateSettingsUseCase(store, pub, logger.Discard())

	saved, err := uc.Execute(context.Background(), validSettings())

	require.NoError(t, err)
	assert.Equal(t, validSettings(), saved)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, [][2]string{{"15 1 * * *", "30 22 * * *"}}, pub.crons)
}

func TestUpdateSettings_PublishFailureDoesNotFail(t *testing.T) {
	store := &memorySettingsStore{}
	pub := &recordingPublisher{err: errors.New("redis down")}
	uc := NewUpdateSettingsUseCase(store, pub, logger.Discard())

	_, err := uc.Execute(context.Background(), validSettings())

	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestUpdateSettings_InvalidRejectedWithoutSave(t *testing.T) {
	store := &memorySettingsStore{}
	pub := &recordingPublisher{}
	uc := NewUpdateSettingsUseCase(store, pub, logger.Discard())

	bad := validSettings()
	bad.MaxAttempts = 11

	_, err := uc.Execute(context.Background(), bad)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Zero(t, store.saves)
	assert.Empty(t, pub.crons)
}

func TestGetSettings_ReturnsStored(t *testing.T) {
	store := &memorySettingsStore{current: validSettings()}
	uc := NewGetSettingsUseCase(store, logger.Discard())

	got, err := uc.Execute(context.Background())

	require.NoError(t, err)
	assert.Equal(t, validSettings(), got)
}
