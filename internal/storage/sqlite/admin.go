package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const adminPasswordKey = "admin_password_hash"

// GetAdminPasswordHash retrieves the stored admin password hash.
// An empty string means no password has been set.
func (s *Storage) GetAdminPasswordHash(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStorageClosed
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM admin_settings WHERE key = ?",
		adminPasswordKey,
	).Scan(&hash)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return hash, nil
}

// SetAdminPasswordHash stores the admin password hash
func (s *Storage) SetAdminPasswordHash(ctx context.Context, hash string) error {
	if hash == "" {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, adminPasswordKey, hash, toUnix(time.Now()))

	return err
}

// HasAdminPassword checks if an admin password has been configured
func (s *Storage) HasAdminPassword(ctx context.Context) (bool, error) {
	hash, err := s.GetAdminPasswordHash(ctx)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}
