package db

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Get returns the raw blob stored under key. The second return value is
// false when the key is absent; an absent key is not an error.
func Get(db *sql.DB, key string) ([]byte, bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM blobs WHERE key = ?", key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read blob %q: %w", key, err)
	}
	return []byte(value), true, nil
}

// Put stores the raw blob under key, replacing any previous value.
func Put(db *sql.DB, key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write blob %q: %w", key, err)
	}
	return nil
}

// Delete removes the blob stored under key. Deleting an absent key is a no-op.
func Delete(db *sql.DB, key string) error {
	if _, err := db.Exec("DELETE FROM blobs WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete blob %q: %w", key, err)
	}
	return nil
}

// GetJSON decodes the blob stored under key into out. An absent key leaves
// out untouched and returns false. A corrupt blob is discarded and treated
// as absent; persistence problems must never crash an analysis.
func GetJSON(db *sql.DB, key string, out any) (bool, error) {
	data, ok, err := Get(db, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("discarding corrupt blob")
		if delErr := Delete(db, key); delErr != nil {
			return false, delErr
		}
		return false, nil
	}
	return true, nil
}

// PutJSON encodes v as JSON and stores it under key.
func PutJSON(db *sql.DB, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode blob %q: %w", key, err)
	}
	return Put(db, key, data)
}
