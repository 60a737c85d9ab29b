// Package admission authenticates callers by secret and applies their
// sliding-window quota before any work is dispatched.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/mandalnilabja/ocrway/internal/metrics"
	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
)

// LookupTTL is how long a digest-to-id mapping stays cached.
const LookupTTL = 5 * time.Minute

// Service combines the credential store and the quota guard. Evaluate and
// record for one credential happen under that credential's lock, so
// concurrent callers can never overshoot a limit.
type Service struct {
	store  storage.Storage
	guard  *quota.Guard
	cache  *ristretto.Cache[string, string]
	locks  *keyedMutex
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLookupCache enables the digest-to-id cache.
func WithLookupCache(cache *ristretto.Cache[string, string]) Option {
	return func(s *Service) { s.cache = cache }
}

// New creates an admission service.
func New(store storage.Storage, guard *quota.Guard, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		guard:  guard,
		locks:  newKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLookupCache builds the ristretto cache used by WithLookupCache.
func NewLookupCache() (*ristretto.Cache[string, string], error) {
	return ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters:        1e5,
		MaxCost:            1 << 16,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
}

// Admit authenticates rawSecret and charges one request against its quota.
// On success the returned credential reflects the recorded usage.
func (s *Service) Admit(ctx context.Context, rawSecret string) (*storage.Credential, error) {
	if rawSecret == "" {
		metrics.RecordAdmission("unauthenticated")
		return nil, &AuthError{Reason: authMissing}
	}
	if !storage.HasSecretPrefix(rawSecret) {
		metrics.RecordAdmission("unauthenticated")
		return nil, &AuthError{Reason: authInvalid}
	}

	hash := storage.HashSecret(rawSecret)
	id, err := s.resolve(ctx, hash)
	if err != nil {
		return nil, s.admitFailed(err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	cred, err := s.store.GetCredential(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.forget(hash)
		}
		return nil, s.admitFailed(err)
	}
	if !cred.IsActive {
		metrics.RecordAdmission("unauthenticated")
		return nil, &AuthError{Reason: authInvalid}
	}

	now := s.now()
	decision := s.guard.EvaluateCredential(cred, now)
	if !decision.Allowed {
		metrics.RecordAdmission(string(decision.Reason))
		s.logger.Debug("quota exceeded", "credential_id", cred.ID, "reason", decision.Reason)
		return nil, &QuotaExceededError{Reason: decision.Reason, RetryAfter: decision.RetryAfter}
	}

	if err := s.store.RecordUsage(ctx, cred.ID, now); err != nil {
		return nil, s.admitFailed(fmt.Errorf("record usage: %w", err))
	}

	cred.UsageEvents = quota.Prune(append(cred.UsageEvents, now), now)
	cred.TotalRequests++
	cred.LastUsedAt = &now

	metrics.RecordAdmission("admitted")
	return cred, nil
}

func (s *Service) resolve(ctx context.Context, hash string) (string, error) {
	if s.cache != nil {
		if id, ok := s.cache.Get(hash); ok {
			return id, nil
		}
	}

	cred, err := s.store.GetCredentialByHash(ctx, hash)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cache.SetWithTTL(hash, cred.ID, 1, LookupTTL)
	}
	return cred.ID, nil
}

func (s *Service) forget(hash string) {
	if s.cache != nil {
		s.cache.Del(hash)
	}
}

func (s *Service) admitFailed(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		metrics.RecordAdmission("unauthenticated")
		return &AuthError{Reason: authInvalid}
	}
	metrics.RecordAdmission("error")
	s.logger.Error("admission failed", "error", err)
	return err
}
