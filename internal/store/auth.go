package store

import (
	"database/sql"
	"errors"
	"time"
)

// Auth represents OAuth tokens for health bridge API access
type Auth struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// GetAuth retrieves the stored authentication tokens.
func (s *Store) GetAuth() (*Auth, error) {
	var auth Auth
	var expiresAt int64
	err := s.db.QueryRow(`
		SELECT access_token, refresh_token, expires_at FROM auth WHERE id = 1
	`).Scan(&auth.AccessToken, &auth.RefreshToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAuth
	}
	if err != nil {
		return nil, err
	}
	auth.ExpiresAt = time.Unix(expiresAt, 0)
	return &auth, nil
}

// SaveAuth stores or updates the authentication tokens.
func (s *Store) SaveAuth(auth *Auth) error {
	_, err := s.db.Exec(`
		INSERT INTO auth (id, access_token, refresh_token, expires_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt.Unix())
	return err
}

// UpdateTokens updates just the access and refresh tokens.
func (s *Store) UpdateTokens(accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := s.db.Exec(`
		UPDATE auth SET
			access_token = ?,
			refresh_token = ?,
			expires_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, accessToken, refreshToken, expiresAt.Unix())
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoAuth
	}
	return nil
}
