package store

import (
	"database/sql"
	"errors"
)

// GetLastReportJSON retrieves the most recently committed report, used as an
// offline fallback when a fresh run cannot be produced.
func (s *Store) GetLastReportJSON() (string, error) {
	var data string
	err := s.db.QueryRow(`SELECT json FROM reports WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoReport
	}
	return data, err
}
