package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Authentication with the health bridge (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Daily baseline observations (one row per metric per calendar day)
		`CREATE TABLE IF NOT EXISTS baseline_observations (
			metric_id TEXT NOT NULL,
			day TEXT NOT NULL,
			value REAL NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (metric_id, day)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_baseline_observations_metric ON baseline_observations(metric_id, day)`,

		// Sync anchors (one cursor per raw sample stream)
		`CREATE TABLE IF NOT EXISTS anchors (
			stream_id TEXT PRIMARY KEY,
			cursor TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Last generated report (singleton row, replaced atomically per run)
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			json TEXT NOT NULL,
			generated_at TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
