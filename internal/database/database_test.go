package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decoyworks/honeypot/internal/models"
)

func TestOpen(t *testing.T) {
	// Test with memory DB
	db, err := Open("sqlite", "file::memory:?cache=shared")
	assert.NoError(t, err)
	assert.NotNil(t, db)

	// Test with file DB
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	db, err = Open("sqlite", dbPath)
	require.NoError(t, err)
	assert.NotNil(t, db)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongodb", "whatever")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T table", m)
	}
	assert.True(t, db.Migrator().HasIndex(&models.ScanEvent{}, "idx_scan_ip_ts"))
	assert.True(t, db.Migrator().HasIndex(&models.ScanEvent{}, "idx_scan_fp_ts"))

	// Idempotent
	require.NoError(t, Migrate(db))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN("file::memory:?cache=shared"))
	assert.Equal(t, "data/hp.db?_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("data/hp.db"))
}
