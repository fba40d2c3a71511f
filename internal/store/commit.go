package store

import (
	"fmt"
	"time"
)

// ObservationUpsert is one daily baseline observation to persist.
type ObservationUpsert struct {
	MetricID string
	Day      string // baseline.DayKeyLayout
	Value    float64
}

// RunCommit is everything a refresh run persists. It is applied in a single
// transaction so a crash mid-run leaves either the pre-run or the fully
// updated state, never a partially advanced anchor paired with stale
// baselines.
type RunCommit struct {
	Observations []ObservationUpsert
	Anchors      map[string]string // stream ID -> cursor, only streams to advance
	ReportJSON   string
	GeneratedAt  time.Time
}

// CommitRun atomically applies a run's observations, anchor advances and
// report snapshot. Observations are upserted by (metric, day) key, so
// re-committing the same day replaces rather than appends.
func (s *Store) CommitRun(c RunCommit) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obs := range c.Observations {
		if _, err := tx.Exec(`
			INSERT INTO baseline_observations (metric_id, day, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(metric_id, day) DO UPDATE SET
				value = excluded.value,
				updated_at = CURRENT_TIMESTAMP
		`, obs.MetricID, obs.Day, obs.Value); err != nil {
			return fmt.Errorf("upserting observation %s/%s: %w", obs.MetricID, obs.Day, err)
		}
	}

	for streamID, cursor := range c.Anchors {
		if _, err := tx.Exec(`
			INSERT INTO anchors (stream_id, cursor, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(stream_id) DO UPDATE SET
				cursor = excluded.cursor,
				updated_at = CURRENT_TIMESTAMP
		`, streamID, cursor); err != nil {
			return fmt.Errorf("advancing anchor %s: %w", streamID, err)
		}
	}

	if c.ReportJSON != "" {
		if _, err := tx.Exec(`
			INSERT INTO reports (id, json, generated_at)
			VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				json = excluded.json,
				generated_at = excluded.generated_at
		`, c.ReportJSON, c.GeneratedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("saving report: %w", err)
		}
	}

	return tx.Commit()
}
