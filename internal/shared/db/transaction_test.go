package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
	"github.com/orris-inc/autopay/internal/shared/db"
	"github.com/orris-inc/autopay/internal/testutil"
)

func newUser(externalID string) *models.UserModel {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.UserModel{ExternalID: externalID, CreatedAt: now, UpdatedAt: now}
}

func countUsers(t *testing.T, tm *db.TransactionManager) int64 {
	t.Helper()
	var n int64
	require.NoError(t, tm.GetTx(context.Background()).Model(&models.UserModel{}).Count(&n).Error)
	return n
}

func TestRunInTransaction_Commit(t *testing.T) {
	tm := db.NewTransactionManager(testutil.NewSQLiteDB(t))

	err := tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, db.InTransaction(ctx))
		return tm.GetTx(ctx).Create(newUser("u-1")).Error
	})

	require.NoError(t, err)
	assert.EqualValues(t, 1, countUsers(t, tm))
}

func TestRunInTransaction_Rollback(t *testing.T) {
	tm := db.NewTransactionManager(testutil.NewSQLiteDB(t))
	boom := errors.New("provider unavailable")

	err := tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, tm.GetTx(ctx).Create(newUser("u-1")).Error)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, countUsers(t, tm))
}

func TestRunInTransaction_NestedCallJoinsOuter(t *testing.T) {
	tm := db.NewTransactionManager(testutil.NewSQLiteDB(t))
	boom := errors.New("outer failed")

	err := tm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		outer := tm.GetTx(ctx)
		innerErr := tm.RunInTransaction(ctx, func(inner context.Context) error {
			assert.Same(t, outer, tm.GetTx(inner))
			return tm.GetTx(inner).Create(newUser("u-2")).Error
		})
		require.NoError(t, innerErr)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 0, countUsers(t, tm))
}

func TestInTransaction_PlainContext(t *testing.T) {
	assert.False(t, db.InTransaction(context.Background()))
}
