package store

import (
	"fmt"

	"pulse/internal/baseline"
)

// GetObservations retrieves a metric's daily observations ordered by day
// ascending. A limit of 0 returns the full series; otherwise the most recent
// `limit` days are returned (still ascending).
func (s *Store) GetObservations(metricID string, limit int) ([]baseline.Observation, error) {
	query := `
		SELECT day, value FROM baseline_observations
		WHERE metric_id = ?
		ORDER BY day ASC
	`
	args := []any{metricID}
	if limit > 0 {
		query = `
			SELECT day, value FROM (
				SELECT day, value FROM baseline_observations
				WHERE metric_id = ?
				ORDER BY day DESC
				LIMIT ?
			) ORDER BY day ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations for %s: %w", metricID, err)
	}
	defer rows.Close()

	var series []baseline.Observation
	for rows.Next() {
		var obs baseline.Observation
		if err := rows.Scan(&obs.Day, &obs.Value); err != nil {
			return nil, fmt.Errorf("scanning observation: %w", err)
		}
		series = append(series, obs)
	}
	return series, rows.Err()
}

// CountObservations returns the number of stored days for a metric.
func (s *Store) CountObservations(metricID string) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM baseline_observations WHERE metric_id = ?
	`, metricID).Scan(&count)
	return count, err
}

// ResetBaselines removes every stored observation. Baselines restart cold on
// the next run.
func (s *Store) ResetBaselines() error {
	_, err := s.db.Exec(`DELETE FROM baseline_observations`)
	return err
}
