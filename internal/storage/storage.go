// Package storage provides the storage interface and implementations.
package storage

import (
	"context"
	"time"

	"github.com/mandalnilabja/ocrway/internal/storage/models"
	"github.com/mandalnilabja/ocrway/internal/storage/sqlite"
)

// Re-export types from models package for convenience
type (
	Credential        = models.Credential
	CredentialPreview = models.CredentialPreview
	CredentialStats   = models.CredentialStats
	UsageSummary      = models.UsageSummary
)

// Re-export errors from sqlite package
var (
	ErrNotFound      = sqlite.ErrNotFound
	ErrDuplicateKey  = sqlite.ErrDuplicateKey
	ErrInvalidInput  = sqlite.ErrInvalidInput
	ErrStorageClosed = sqlite.ErrStorageClosed
)

// UsageRetention is how long usage events are kept after every write.
const UsageRetention = sqlite.UsageRetention

// Storage defines the interface for persistent data storage.
// Implementations hold no quota policy; they only persist credentials and
// their usage history.
type Storage interface {
	// Credential operations
	CreateCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	GetCredentialByHash(ctx context.Context, secretHash string) (*models.Credential, error)
	ListCredentials(ctx context.Context) ([]*models.Credential, error)
	DeleteCredential(ctx context.Context, id string) error
	SetCredentialActive(ctx context.Context, id string, active bool) error

	// Usage operations
	RecordUsage(ctx context.Context, id string, ts time.Time) error
	PruneUsage(ctx context.Context, id string, now time.Time) error
	GetUsageSummary(ctx context.Context, now time.Time) (*models.UsageSummary, error)

	// Admin password operations
	GetAdminPasswordHash(ctx context.Context) (string, error)
	SetAdminPasswordHash(ctx context.Context, hash string) error
	HasAdminPassword(ctx context.Context) (bool, error)

	// Maintenance operations
	Ping(ctx context.Context) error
	Close() error
}

// NewSQLiteStorage creates a new SQLite storage instance and applies
// pending migrations.
// This is the main factory function for creating storage
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return sqlite.New(dbPath)
}
