package clientstate

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE client_state (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL);
CREATE TABLE resource_cache (resource TEXT NOT NULL, key TEXT NOT NULL, data TEXT NOT NULL, expires_at INTEGER NOT NULL, PRIMARY KEY (resource, key));
CREATE INDEX idx_resource_cache_expires ON resource_cache(expires_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestSetAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Set(KeySessionToken, "abc123"))

	value, err := repo.Get(KeySessionToken)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "abc123", *value)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	value, err := repo.Get("no_such_key")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetOverwrites(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Set(KeySessionToken, "first"))
	require.NoError(t, repo.Set(KeySessionToken, "second"))

	value, err := repo.Get(KeySessionToken)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "second", *value)
}

func TestGetJSONRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	type user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	require.NoError(t, repo.SetJSON(KeyCachedUser, user{Email: "a@b.com", Name: "Alice"}))

	var got user
	found, err := repo.GetJSON(KeyCachedUser, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a@b.com", got.Email)
	assert.Equal(t, "Alice", got.Name)
}

func TestGetJSONCorruptValueTreatedAsAbsent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Set(KeyCachedUser, "{not valid json"))

	var got map[string]interface{}
	found, err := repo.GetJSON(KeyCachedUser, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJSONMissingKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	var got []string
	found, err := repo.GetJSON(KeyWatchlist, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Set(KeySessionToken, "tok"))
	require.NoError(t, repo.Delete(KeySessionToken))
	require.NoError(t, repo.Delete(KeySessionToken))

	value, err := repo.Get(KeySessionToken)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestCacheFreshAndStale(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cache := NewCache(db)

	type payload struct {
		Value int `json:"value"`
	}

	require.NoError(t, cache.Store("chart", "AAPL:1mo", payload{Value: 42}, time.Hour))

	fresh, err := cache.GetIfFresh("chart", "AAPL:1mo")
	require.NoError(t, err)
	assert.NotNil(t, fresh)

	// Expire the entry, then verify the stale fallback still serves it.
	_, err = db.Exec("UPDATE resource_cache SET expires_at = ? WHERE resource = 'chart'", time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)

	fresh, err = cache.GetIfFresh("chart", "AAPL:1mo")
	require.NoError(t, err)
	assert.Nil(t, fresh)

	stale, err := cache.Get("chart", "AAPL:1mo")
	require.NoError(t, err)
	assert.NotNil(t, stale)
}

func TestCacheDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cache := NewCache(db)

	require.NoError(t, cache.Store("chart", "fresh", map[string]int{"v": 1}, time.Hour))
	require.NoError(t, cache.Store("chart", "old", map[string]int{"v": 2}, time.Hour))
	_, err := db.Exec("UPDATE resource_cache SET expires_at = ? WHERE key = 'old'", time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)

	deleted, err := cache.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := cache.Get("chart", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, remaining)
}
