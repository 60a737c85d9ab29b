package admission

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
)

// Limits accepted when creating a credential.
const (
	MaxNameLength = 100
	MaxPerMinute  = 1000
	MaxPerDay     = 100000
)

// CreateParams describes a credential to issue.
type CreateParams struct {
	Name               string
	RateLimitPerMinute int
	RateLimitPerDay    int
	IsActive           bool
}

// Validate checks the parameter bounds.
func (p CreateParams) Validate() error {
	if n := utf8.RuneCountInString(p.Name); n < 1 || n > MaxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", storage.ErrInvalidInput, MaxNameLength)
	}
	if p.RateLimitPerMinute < 1 || p.RateLimitPerMinute > MaxPerMinute {
		return fmt.Errorf("%w: rate_limit_per_minute must be between 1 and %d", storage.ErrInvalidInput, MaxPerMinute)
	}
	if p.RateLimitPerDay < 1 || p.RateLimitPerDay > MaxPerDay {
		return fmt.Errorf("%w: rate_limit_per_day must be between 1 and %d", storage.ErrInvalidInput, MaxPerDay)
	}
	return nil
}

// Create issues a new credential. The raw secret is returned exactly once.
func (s *Service) Create(ctx context.Context, p CreateParams) (*storage.Credential, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}

	raw, err := storage.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}
	id, err := storage.GenerateCredentialID()
	if err != nil {
		return nil, "", fmt.Errorf("generate id: %w", err)
	}

	cred := &storage.Credential{
		ID:                 id,
		Name:               p.Name,
		SecretHash:         storage.HashSecret(raw),
		KeyPrefix:          storage.ExtractKeyPrefix(raw),
		IsActive:           p.IsActive,
		RateLimitPerMinute: p.RateLimitPerMinute,
		RateLimitPerDay:    p.RateLimitPerDay,
		CreatedAt:          s.now().UTC(),
	}

	if err := s.store.CreateCredential(ctx, cred); err != nil {
		return nil, "", err
	}

	s.logger.Info("credential created", "credential_id", cred.ID, "name", cred.Name)
	return cred, raw, nil
}

// List returns all credentials, newest first.
func (s *Service) List(ctx context.Context) ([]*storage.Credential, error) {
	return s.store.ListCredentials(ctx)
}

// Delete removes a credential and its usage history.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCredential(ctx, id); err != nil {
		return err
	}
	s.forget(cred.SecretHash)

	s.logger.Info("credential deleted", "credential_id", id)
	return nil
}

// SetActive enables or disables a credential.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetCredentialActive(ctx, id, active); err != nil {
		return err
	}
	s.forget(cred.SecretHash)
	return nil
}

// Stats prunes the credential's history and reports its recent activity.
func (s *Service) Stats(ctx context.Context, id string) (*storage.CredentialStats, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	now := s.now()
	if err := s.store.PruneUsage(ctx, id, now); err != nil {
		return nil, err
	}

	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		return nil, err
	}

	return &storage.CredentialStats{
		ID:               cred.ID,
		Name:             cred.Name,
		TotalRequests:    cred.TotalRequests,
		RequestsToday:    quota.CountSince(cred.UsageEvents, now.Add(-quota.DayWindow)),
		RequestsThisHour: quota.CountSince(cred.UsageEvents, now.Add(-time.Hour)),
		LastUsedAt:       cred.LastUsedAt,
	}, nil
}

// Summary reports global counters.
func (s *Service) Summary(ctx context.Context) (*storage.UsageSummary, error) {
	return s.store.GetUsageSummary(ctx, s.now())
}
