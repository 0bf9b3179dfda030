// Package clientstate provides the durable local key-value store backing the
// dashboard state store. Values are JSON blobs keyed by well-known names and
// survive process restarts; nothing here is authoritative - the backend is.
// Corrupt or unparseable entries are treated as absent, never as errors.
package clientstate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Schema for the durable client state table.
const Schema = `
CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Well-known keys for durable client state.
const (
	KeySessionToken = "session_token"
	KeyCachedUser   = "cached_user"
	KeyWatchlist    = "watchlist_symbols"
	KeyChatMessages = "chat_transcript"
	KeyBotConfig    = "bot_config"
	KeyAppSettings  = "app_settings"
)

// Repository handles durable client state in the client database.
// All operations are synchronous and touch only the local database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new client state repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "clientstate").Logger(),
	}
}

// Get retrieves a raw value by key.
// Returns nil if the key doesn't exist (not an error).
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM client_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return &value, nil
}

// Set stores a raw value under key, replacing any previous value.
func (r *Repository) Set(key, value string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetJSON retrieves a value and unmarshals it into dest.
// Returns (false, nil) when the key is missing or the stored value does not
// parse; a corrupt entry reads the same as an absent one.
func (r *Repository) GetJSON(key string, dest interface{}) (bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}

	if err := json.Unmarshal([]byte(*value), dest); err != nil {
		r.log.Warn().
			Err(err).
			Str("key", key).
			Msg("Stored value failed to parse, treating as absent")
		return false, nil
	}

	return true, nil
}

// SetJSON marshals value and stores it under key.
func (r *Repository) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return r.Set(key, string(data))
}

// Delete removes a key.
// Idempotent - deleting an absent key is not an error.
func (r *Repository) Delete(key string) error {
	_, err := r.db.Exec("DELETE FROM client_state WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
