package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mandalnilabja/ocrway/internal/storage/models"
)

// RecordUsage appends a usage event at ts, prunes events older than
// UsageRetention, bumps the lifetime counter and sets last_used_at, all in
// one transaction.
func (s *Storage) RecordUsage(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM credentials WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO usage_events (credential_id, ts) VALUES (?, ?)", id, toUnix(ts)); err != nil {
		return err
	}

	if err := pruneTx(ctx, tx, id, ts); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE credentials
		SET total_requests = total_requests + 1, last_used_at = ?
		WHERE id = ?
	`, toUnix(ts), id); err != nil {
		return err
	}

	return tx.Commit()
}

// PruneUsage drops events at or before now-UsageRetention. Running it twice
// with the same now leaves the same result.
func (s *Storage) PruneUsage(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := pruneTx(ctx, tx, id, now); err != nil {
		return err
	}
	return tx.Commit()
}

// GetUsageSummary returns global counters across all credentials
func (s *Storage) GetUsageSummary(ctx context.Context, now time.Time) (*models.UsageSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	var summary models.UsageSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_requests), 0)
		FROM credentials
	`).Scan(&summary.TotalCredentials, &summary.ActiveCredentials, &summary.TotalRequestsAllTime)
	if err != nil {
		return nil, err
	}

	cutoff := toUnix(now.Add(-UsageRetention))
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage_events WHERE ts > ?", cutoff,
	).Scan(&summary.TotalRequestsToday)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

func pruneTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM usage_events WHERE credential_id = ? AND ts <= ?",
		id, toUnix(now.Add(-UsageRetention)))
	return err
}
