package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Results table - one row per session saved to the backend
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			procedure_id INTEGER NOT NULL,
			procedure_name TEXT NOT NULL DEFAULT '',
			marks INTEGER NOT NULL,
			total_stages INTEGER NOT NULL,
			score INTEGER NOT NULL,
			remote_id INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_results_procedure_id ON results(procedure_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_completed_at ON results(completed_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
