package store

import (
	"database/sql"
	"errors"
)

// SettingRepository provides access to persisted daemon settings, stored
// as key-value pairs. The daemon uses it to remember state across
// restarts, such as the last procedure a trainee selected.
type SettingRepository struct {
	db *sql.DB
}

// Settings returns the setting repository for this store.
func (s *Store) Settings() *SettingRepository {
	return &SettingRepository{db: s.db}
}

// Set stores a setting, replacing any previous value for the key.
func (r *SettingRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Get retrieves a setting by key. Returns ErrNotFound if the key has
// never been set.
func (r *SettingRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
