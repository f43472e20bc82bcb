package appstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"weekplan/internal/database"
)

// Well-known keys.
const (
	KeyPantry         = "pantry"
	KeyPreferences    = "preferences"
	KeyTelegram       = "telegram_settings"
	KeyLastChatID     = "telegram_last_chat_id"
	KeySchedulerRun   = "scheduler_last_run"
	avoidKeyPrefix    = "swap_avoid:"
	importCachePrefix = "import_preview:"
)

// AvoidKey returns the key of the swap avoid-set for a week.
func AvoidKey(weekStart string) string {
	return avoidKeyPrefix + weekStart
}

// ImportCacheKey returns the key of a cached import preview.
func ImportCacheKey(hash string) string {
	return importCachePrefix + hash
}

// Entry is a single row of the app_state table.
type Entry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Store is a small key/value store on top of the app_state table.
type Store struct {
	db *database.DB
}

// NewStore creates a new Store instance
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Get returns the entry for key, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.SQL.QueryRowContext(ctx,
		s.db.Rebind("SELECT key, value, updated_at FROM app_state WHERE key = ?"), key)

	var e Entry
	if err := row.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read app state %q: %w", key, err)
	}
	return &e, nil
}

// Set upserts the value of key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.SQL.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write app state %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.SQL.ExecContext(ctx, s.db.Rebind("DELETE FROM app_state WHERE key = ?"), key); err != nil {
		return fmt.Errorf("failed to delete app state %q: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value of key into dst. It reports false when the key
// is missing or its value cannot be decoded.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	e, err := s.Get(ctx, key)
	if err != nil || e == nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(e.Value), dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode app state %q: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
