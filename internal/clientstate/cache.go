package clientstate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CacheSchema for the expiring resource cache table.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS resource_cache (
	resource   TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (resource, key)
);
CREATE INDEX IF NOT EXISTS idx_resource_cache_expires ON resource_cache(expires_at);
`

// Cache TTLs per resource kind.
const (
	TTLChart    = 15 * time.Minute
	TTLBacktest = 1 * time.Hour
)

// Cache provides persistent, expiring storage for backend responses that are
// expensive to refetch (chart OHLCV series, backtest metrics). Stale entries
// remain readable as a fallback when the backend is unreachable.
type Cache struct {
	db *sql.DB
}

// NewCache creates a new resource cache.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Store saves data with expiration = now + ttl.
func (c *Cache) Store(resource, key string, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()

	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO resource_cache (resource, key, data, expires_at)
		VALUES (?, ?, ?, ?)
	`, resource, key, string(jsonData), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store %s/%s in cache: %w", resource, key, err)
	}

	return nil
}

// GetIfFresh returns data only if expires_at > now, nil otherwise.
// Use Get to retrieve stale data as a fallback when the backend fails.
func (c *Cache) GetIfFresh(resource, key string) (json.RawMessage, error) {
	now := time.Now().Unix()

	var data string
	err := c.db.QueryRow(
		"SELECT data FROM resource_cache WHERE resource = ? AND key = ? AND expires_at > ?",
		resource, key, now,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s from cache: %w", resource, key, err)
	}

	return json.RawMessage(data), nil
}

// Get returns data regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (c *Cache) Get(resource, key string) (json.RawMessage, error) {
	var data string
	err := c.db.QueryRow(
		"SELECT data FROM resource_cache WHERE resource = ? AND key = ?",
		resource, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s from cache: %w", resource, key, err)
	}

	return json.RawMessage(data), nil
}

// DeleteExpired removes all rows where expires_at < now.
// Returns the number of rows deleted.
func (c *Cache) DeleteExpired() (int64, error) {
	now := time.Now().Unix()

	result, err := c.db.Exec("DELETE FROM resource_cache WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache rows: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
