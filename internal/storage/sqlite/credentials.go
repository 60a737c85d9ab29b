package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mandalnilabja/ocrway/internal/storage/models"
)

const credentialColumns = `id, name, secret_hash, key_prefix, is_active,
	rate_limit_per_minute, rate_limit_per_day, total_requests, last_used_at, created_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateCredential stores a new credential. The raw secret never reaches
// this layer; only its digest is persisted.
func (s *Storage) CreateCredential(ctx context.Context, cred *models.Credential) error {
	if cred == nil || cred.ID == "" || cred.SecretHash == "" || cred.Name == "" {
		return ErrInvalidInput
	}
	if cred.RateLimitPerMinute <= 0 || cred.RateLimitPerDay <= 0 {
		return fmt.Errorf("%w: rate limits must be positive", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, cred.ID, cred.Name, cred.SecretHash, cred.KeyPrefix, cred.IsActive,
		cred.RateLimitPerMinute, cred.RateLimitPerDay, cred.TotalRequests, toUnix(cred.CreatedAt))

	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	return err
}

// GetCredential retrieves a credential by ID with its usage events loaded
func (s *Storage) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	return s.getCredential(ctx, "id", id)
}

// GetCredentialByHash retrieves a credential by secret digest
func (s *Storage) GetCredentialByHash(ctx context.Context, secretHash string) (*models.Credential, error) {
	return s.getCredential(ctx, "secret_hash", secretHash)
}

func (s *Storage) getCredential(ctx context.Context, column, value string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE `+column+` = ?`, value)

	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cred.UsageEvents, err = loadUsageEvents(ctx, s.db, cred.ID)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// ListCredentials returns all credentials, newest first
func (s *Storage) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, cred := range creds {
		if cred.UsageEvents, err = loadUsageEvents(ctx, s.db, cred.ID); err != nil {
			return nil, err
		}
	}

	return creds, nil
}

// DeleteCredential removes a credential; its usage events cascade
func (s *Storage) DeleteCredential(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// SetCredentialActive enables or disables a credential
func (s *Storage) SetCredentialActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE credentials SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var cred models.Credential
	var lastUsedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&cred.ID, &cred.Name, &cred.SecretHash, &cred.KeyPrefix, &cred.IsActive,
		&cred.RateLimitPerMinute, &cred.RateLimitPerDay, &cred.TotalRequests,
		&lastUsedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	cred.LastUsedAt = nullTime(lastUsedAt)
	cred.CreatedAt = fromUnix(createdAt)
	return &cred, nil
}

func loadUsageEvents(ctx context.Context, q queryer, id string) ([]time.Time, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT ts FROM usage_events WHERE credential_id = ? ORDER BY ts ASC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []time.Time{}
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		events = append(events, fromUnix(ts))
	}
	return events, rows.Err()
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
