package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func newTestDB(t *testing.T, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: profile,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t, ProfileStandard)

	require.NoError(t, db.Migrate(testSchema))
	require.NoError(t, db.Migrate(testSchema))

	_, err := db.Conn().Exec("INSERT INTO kv (key, value) VALUES ('a', 'b')")
	require.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, ProfileCache)
	require.NoError(t, db.Migrate(testSchema))

	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, ProfileStandard)
	require.NoError(t, db.Migrate(testSchema))

	for i := 0; i < 100; i++ {
		_, err := db.Conn().Exec("INSERT OR REPLACE INTO kv (key, value) VALUES ('k', ?)", i)
		require.NoError(t, err)
	}

	assert.NoError(t, db.WALCheckpoint("TRUNCATE"))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newTestDB(t, ProfileStandard)
	require.NoError(t, db.Migrate(testSchema))

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO kv (key, value) VALUES ('x', 'y')"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM kv").Scan(&count))
	assert.Zero(t, count)
}
