package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Gestures table - stores gesture definitions in library order
		`CREATE TABLE IF NOT EXISTS gestures (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			classifier TEXT NOT NULL CHECK(classifier IN ('dtw', 'threshold')),
			rule TEXT,
			max_distance REAL NOT NULL DEFAULT 0,
			cooldown_ms INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			position INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Templates table - stores recorded exemplar sequences as JSON
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			gesture_id TEXT NOT NULL REFERENCES gestures(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			recorded_at_ms INTEGER NOT NULL DEFAULT 0,
			sample_rate_hz REAL NOT NULL DEFAULT 0,
			samples TEXT NOT NULL
		)`,

		// Recordings table - stores raw session repetitions for re-training
		`CREATE TABLE IF NOT EXISTS recordings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gesture_id TEXT NOT NULL,
			repetition_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_templates_gesture_id ON templates(gesture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_gesture_id ON recordings(gesture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
