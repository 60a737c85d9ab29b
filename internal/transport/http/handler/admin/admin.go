// Package admin serves the credential management API.
package admin

import (
	"log/slog"
	"time"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
)

// Handlers holds the dependencies for admin HTTP handlers.
type Handlers struct {
	Service   *admission.Service
	Storage   storage.Storage
	Issuer    *auth.TokenIssuer
	Username  string
	StartTime time.Time
	Logger    *slog.Logger

	// Defaults applied when a create request omits a limit.
	DefaultPerMinute int
	DefaultPerDay    int
}

// New creates a new instance of admin handlers.
func New(svc *admission.Service, store storage.Storage, issuer *auth.TokenIssuer, username string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Service:          svc,
		Storage:          store,
		Issuer:           issuer,
		Username:         username,
		StartTime:        time.Now(),
		Logger:           logger,
		DefaultPerMinute: 60,
		DefaultPerDay:    1000,
	}
}
