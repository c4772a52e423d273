package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/testutil"
)

func TestEmbeddedScripts(t *testing.T) {
	migrations, err := Scripts()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, int64(2), migrations[1].Version)

	raw, err := scripts.ReadFile("scripts/00001_create_renewal_tables.sql")
	require.NoError(t, err)
	for _, table := range []string{"users", "plans", "subscriptions", "payments", "refunds", "promotions", "promotion_usages"} {
		assert.Contains(t, string(raw), "CREATE TABLE "+table+" (")
		assert.Contains(t, string(raw), "DROP TABLE IF EXISTS "+table+";")
	}
	assert.Contains(t, string(raw), "promotion_applied_at")
	assert.Contains(t, string(raw), "UNIQUE KEY idx_payments_idempotency_key")

	charges, err := scripts.ReadFile("scripts/00002_create_payment_charges.sql")
	require.NoError(t, err)
	assert.Contains(t, string(charges), "CREATE TABLE payment_charges (")
	assert.Contains(t, string(charges), "UNIQUE KEY idx_payment_charges_provider_payment_id")
}

func TestForEnvironment(t *testing.T) {
	assert.Equal(t, "gorm_automigrate", ForEnvironment("development", logger.Discard()).GetName())
	assert.Equal(t, "goose", ForEnvironment("production", logger.Discard()).GetName())
}

func TestGormAutoMigrate(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, NewGormAutoMigrateStrategy(logger.Discard()).Migrate(db))
	assert.True(t, db.Migrator().HasTable("promotion_usages"))
	assert.True(t, db.Migrator().HasTable("payment_charges"))
	assert.True(t, db.Migrator().HasColumn("subscriptions", "promotion_applied_at"))
}
