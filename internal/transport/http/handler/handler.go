// Package handler composes the HTTP handler groups.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/config"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/admin"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/extract"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/infra"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/understand"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
)

// Repo composes all domain-specific handlers.
type Repo struct {
	Admin      *admin.Handlers
	Extract    *extract.Handlers
	Understand *understand.Handlers
	Infra      *infra.Handlers
}

// Deps are the long-lived components handlers are built from.
type Deps struct {
	Config     *config.Config
	Storage    storage.Storage
	Admission  *admission.Service
	Issuer     *auth.TokenIssuer
	Extractor  *ocr.Extractor
	Dispatcher understand.Dispatcher
	Metrics    http.Handler
	Logger     *slog.Logger
}

// NewRepo creates a new instance of the composed handler repository.
func NewRepo(d Deps) *Repo {
	cfg := d.Config
	maxSize := cfg.MaxFileSize()

	adm := admin.New(d.Admission, d.Storage, d.Issuer, cfg.AdminUsername, d.Logger)
	adm.DefaultPerMinute = cfg.DefaultRateLimitPerMinute
	adm.DefaultPerDay = cfg.DefaultRateLimitPerDay

	return &Repo{
		Admin:      adm,
		Extract:    extract.New(d.Extractor, maxSize, cfg.MaxBatchItems, d.Logger),
		Understand: understand.New(d.Dispatcher, maxSize, cfg.MaxBatchItems, d.Logger),
		Infra: infra.New(d.Extractor, infra.Info{
			AllowedLanguages: cfg.AllowedLanguages,
			MaxFileSizeMB:    cfg.MaxFileSizeMB,
			MaxBatchItems:    cfg.MaxBatchItems,
			VLMModel:         cfg.VLM.DisplayModel,
		}, d.Metrics),
	}
}
