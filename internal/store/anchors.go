package store

import "fmt"

// GetAnchors retrieves all stream cursors as a map of stream ID to cursor.
// Streams without an anchor are simply absent.
func (s *Store) GetAnchors() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT stream_id, cursor FROM anchors`)
	if err != nil {
		return nil, fmt.Errorf("querying anchors: %w", err)
	}
	defer rows.Close()

	anchors := make(map[string]string)
	for rows.Next() {
		var streamID, cursor string
		if err := rows.Scan(&streamID, &cursor); err != nil {
			return nil, fmt.Errorf("scanning anchor: %w", err)
		}
		anchors[streamID] = cursor
	}
	return anchors, rows.Err()
}

// ResetAnchors clears every stream cursor so the next run fetches everything
// within its lookback again.
func (s *Store) ResetAnchors() error {
	_, err := s.db.Exec(`DELETE FROM anchors`)
	return err
}
