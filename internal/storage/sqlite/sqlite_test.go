package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandalnilabja/ocrway/internal/storage/models"
)

// setupTestStorage creates a named shared in-memory database per test.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCredential(id, hash string) *models.Credential {
	return &models.Credential{
		ID:                 id,
		Name:               "test " + id,
		SecretHash:         hash,
		KeyPrefix:          "ocr_abcdefgh",
		IsActive:           true,
		RateLimitPerMinute: 60,
		RateLimitPerDay:    1000,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestCreateAndGetCredential(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	cred := newCredential("key_1", "hash1")
	require.NoError(t, s.CreateCredential(ctx, cred))

	got, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)
	assert.Equal(t, "test key_1", got.Name)
	assert.Equal(t, "hash1", got.SecretHash)
	assert.True(t, got.IsActive)
	assert.Equal(t, 60, got.RateLimitPerMinute)
	assert.Equal(t, 1000, got.RateLimitPerDay)
	assert.Nil(t, got.LastUsedAt)
	assert.Empty(t, got.UsageEvents)

	byHash, err := s.GetCredentialByHash(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "key_1", byHash.ID)
}

func TestCreateCredentialDuplicateHash(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "same")))
	err := s.CreateCredential(ctx, newCredential("key_2", "same"))
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestCreateCredentialInvalid(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	cred := newCredential("key_1", "hash")
	cred.RateLimitPerMinute = 0
	assert.ErrorIs(t, s.CreateCredential(ctx, cred), ErrInvalidInput)
	assert.ErrorIs(t, s.CreateCredential(ctx, nil), ErrInvalidInput)
}

func TestGetCredentialNotFound(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.GetCredential(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCredentialByHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCredentialsNewestFirst(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	older := newCredential("key_old", "h1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newCredential("key_new", "h2")

	require.NoError(t, s.CreateCredential(ctx, older))
	require.NoError(t, s.CreateCredential(ctx, newer))

	creds, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "key_new", creds[0].ID)
	assert.Equal(t, "key_old", creds[1].ID)
}

func TestSetCredentialActive(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h")))
	require.NoError(t, s.SetCredentialActive(ctx, "key_1", false))

	got, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetCredentialActive(ctx, "missing", true), ErrNotFound)
}

func TestDeleteCredentialCascadesUsage(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h")))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now))
	require.NoError(t, s.DeleteCredential(ctx, "key_1"))

	_, err := s.GetCredential(ctx, "key_1")
	assert.ErrorIs(t, err, ErrNotFound)

	var remaining int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM usage_events").Scan(&remaining))
	assert.Zero(t, remaining)

	assert.ErrorIs(t, s.DeleteCredential(ctx, "key_1"), ErrNotFound)
}

func TestRecordUsage(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h")))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now.Add(-time.Minute)))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now))

	got, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.TotalRequests)
	require.Len(t, got.UsageEvents, 2)
	assert.True(t, got.UsageEvents[0].Before(got.UsageEvents[1]))
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(now))
}

func TestRecordUsagePrunesOldEvents(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h")))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now.Add(-25*time.Hour)))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now.Add(-UsageRetention)))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now))

	got, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)
	require.Len(t, got.UsageEvents, 1)
	assert.EqualValues(t, 3, got.TotalRequests, "lifetime counter is not pruned")
}

func TestRecordUsageUnknownCredential(t *testing.T) {
	s := setupTestStorage(t)
	err := s.RecordUsage(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneUsageIdempotent(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h")))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now.Add(-2*time.Hour)))

	later := now.Add(23 * time.Hour)
	require.NoError(t, s.PruneUsage(ctx, "key_1", later))
	first, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)

	require.NoError(t, s.PruneUsage(ctx, "key_1", later))
	second, err := s.GetCredential(ctx, "key_1")
	require.NoError(t, err)

	assert.Len(t, first.UsageEvents, 0)
	assert.Equal(t, first.UsageEvents, second.UsageEvents)
}

func TestGetUsageSummary(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateCredential(ctx, newCredential("key_1", "h1")))
	inactive := newCredential("key_2", "h2")
	inactive.IsActive = false
	require.NoError(t, s.CreateCredential(ctx, inactive))

	require.NoError(t, s.RecordUsage(ctx, "key_1", now.Add(-time.Hour)))
	require.NoError(t, s.RecordUsage(ctx, "key_1", now))
	require.NoError(t, s.RecordUsage(ctx, "key_2", now))

	summary, err := s.GetUsageSummary(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCredentials)
	assert.Equal(t, 1, summary.ActiveCredentials)
	assert.Equal(t, 3, summary.TotalRequestsToday)
	assert.EqualValues(t, 3, summary.TotalRequestsAllTime)
}

func TestAdminPassword(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	has, err := s.HasAdminPassword(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SetAdminPasswordHash(ctx, "hash-a"))
	require.NoError(t, s.SetAdminPasswordHash(ctx, "hash-b"))

	hash, err := s.GetAdminPasswordHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-b", hash)

	assert.ErrorIs(t, s.SetAdminPasswordHash(ctx, ""), ErrInvalidInput)
}

func TestClosedStorage(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.GetCredential(ctx, "x")
	assert.ErrorIs(t, err, ErrStorageClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrStorageClosed)
	assert.ErrorIs(t, s.RecordUsage(ctx, "x", time.Now()), ErrStorageClosed)
}
