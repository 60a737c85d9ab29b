// Package infra serves unauthenticated service endpoints.
package infra

import (
	"net/http"
	"time"

	"github.com/mandalnilabja/ocrway/internal/ocr"
)

// Handlers holds the dependencies for infrastructure HTTP handlers.
type Handlers struct {
	Extractor *ocr.Extractor
	Info      Info
	Metrics   http.Handler
	StartTime time.Time
}

// Info is the static service description served at /info.
type Info struct {
	AllowedLanguages []string
	MaxFileSizeMB    int
	MaxBatchItems    int
	VLMModel         string
}

// New creates a new instance of infrastructure handlers. metrics may be nil.
func New(x *ocr.Extractor, info Info, metrics http.Handler) *Handlers {
	return &Handlers{
		Extractor: x,
		Info:      info,
		Metrics:   metrics,
		StartTime: time.Now(),
	}
}
