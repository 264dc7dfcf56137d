package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrationsFromScratch(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, NewMigrationManager(db).ApplyMigrations())

	v := NewSchemaValidator(db)
	assert.NoError(t, v.ValidateTablesExist())
	assert.NoError(t, v.ValidateIndexes())
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	m := NewMigrationManager(db)
	require.NoError(t, m.ApplyMigrations())
	require.NoError(t, m.ApplyMigrations())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchemaValidatorCatchesMissingTable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationManager(db).ApplyMigrations())

	_, err := db.Exec("DROP TABLE assignments")
	require.NoError(t, err)

	assert.Error(t, NewSchemaValidator(db).ValidateTablesExist())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.DatabasePath = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxConnections = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ConnMaxLifetime = 0
	assert.Error(t, cfg.Validate())
}
