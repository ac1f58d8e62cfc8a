package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/imu"
)

// SaveSnapshot replaces the persisted library with the given snapshot
// in a single transaction. Ordering is preserved so a later load
// reproduces the library exactly.
func (s *Store) SaveSnapshot(snap gesture.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM gestures`); err != nil {
		return err
	}

	gestureStmt, err := tx.Prepare(
		`INSERT INTO gestures (id, name, classifier, rule, max_distance, cooldown_ms, enabled, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer gestureStmt.Close()

	templateStmt, err := tx.Prepare(
		`INSERT INTO templates (id, gesture_id, position, recorded_at_ms, sample_rate_hz, samples)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer templateStmt.Close()

	now := time.Now()
	for pos, def := range snap.Definitions {
		var rule any
		if def.Rule != nil {
			data, err := json.Marshal(def.Rule)
			if err != nil {
				return fmt.Errorf("marshal rule for %s: %w", def.ID, err)
			}
			rule = string(data)
		}

		enabled := 0
		if def.Enabled {
			enabled = 1
		}

		if _, err := gestureStmt.Exec(
			def.ID, def.Name, string(def.Classifier), rule,
			def.MaxDistance, def.CooldownMs, enabled, pos, now, now,
		); err != nil {
			return fmt.Errorf("insert gesture %s: %w", def.ID, err)
		}

		for tpos, t := range def.Templates {
			samples, err := json.Marshal(t.Samples)
			if err != nil {
				return fmt.Errorf("marshal samples for %s: %w", t.ID, err)
			}
			if _, err := templateStmt.Exec(
				t.ID, def.ID, tpos, t.RecordedAtMs, t.SampleRateHz, string(samples),
			); err != nil {
				return fmt.Errorf("insert template %s: %w", t.ID, err)
			}
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted library. An empty database yields
// an empty snapshot, not an error.
func (s *Store) LoadSnapshot() (gesture.Snapshot, error) {
	snap := gesture.Snapshot{Version: gesture.SnapshotVersion}

	rows, err := s.db.Query(
		`SELECT id, name, classifier, rule, max_distance, cooldown_ms, enabled
		 FROM gestures ORDER BY position`,
	)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		def := &gesture.Definition{}
		var classifier string
		var rule sql.NullString
		var enabled int

		if err := rows.Scan(&def.ID, &def.Name, &classifier, &rule, &def.MaxDistance, &def.CooldownMs, &enabled); err != nil {
			return snap, err
		}

		def.Classifier = gesture.Classifier(classifier)
		def.Enabled = enabled != 0
		if rule.Valid {
			r := &gesture.ThresholdRule{}
			if err := json.Unmarshal([]byte(rule.String), r); err != nil {
				return snap, fmt.Errorf("unmarshal rule for %s: %w", def.ID, err)
			}
			def.Rule = r
		}

		snap.Definitions = append(snap.Definitions, def)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	for _, def := range snap.Definitions {
		templates, err := s.loadTemplates(def.ID)
		if err != nil {
			return snap, err
		}
		def.Templates = templates
	}

	return snap, nil
}

func (s *Store) loadTemplates(gestureID string) ([]*gesture.Template, error) {
	rows, err := s.db.Query(
		`SELECT id, recorded_at_ms, sample_rate_hz, samples
		 FROM templates WHERE gesture_id = ? ORDER BY position`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*gesture.Template
	for rows.Next() {
		t := &gesture.Template{}
		var samples string

		if err := rows.Scan(&t.ID, &t.RecordedAtMs, &t.SampleRateHz, &samples); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(samples), &t.Samples); err != nil {
			return nil, fmt.Errorf("unmarshal samples for %s: %w", t.ID, err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// SaveRecording persists one raw session repetition for later
// re-training.
func (s *Store) SaveRecording(gestureID string, index int, samples []imu.Sample) error {
	data, err := json.Marshal(samples)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO recordings (gesture_id, repetition_index, data) VALUES (?, ?, ?)`,
		gestureID, index, string(data),
	)
	return err
}

// LoadRecordings retrieves all raw repetitions for a gesture in
// capture order.
func (s *Store) LoadRecordings(gestureID string) ([][]imu.Sample, error) {
	rows, err := s.db.Query(
		`SELECT data FROM recordings WHERE gesture_id = ? ORDER BY repetition_index, id`,
		gestureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]imu.Sample
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var samples []imu.Sample
		if err := json.Unmarshal([]byte(data), &samples); err != nil {
			return nil, err
		}
		out = append(out, samples)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
