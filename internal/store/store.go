// Package store provides the local SQLite journal for the SurgiTrack
// trainer. The authoritative results live in the external backend; the
// journal keeps a client-side copy of every saved session so trainees can
// review past attempts offline.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the trainer's local journal. It owns the results and settings
// tables; repositories are handed out via Results and Settings.
type Store struct {
	db   *sql.DB
	path string
}

// New opens the journal at the given path and applies migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}
