package infra

import (
	"net/http"
	"time"

	"github.com/mandalnilabja/ocrway/internal/transport/http/handler/shared"
	"github.com/mandalnilabja/ocrway/internal/types"
	"github.com/mandalnilabja/ocrway/internal/version"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

// RootStatus returns JSON status and version information at /.
func (h *Handlers) RootStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		types.WriteError(w, http.StatusNotFound, types.NotFound("not found"))
		return
	}
	shared.WriteJSON(w, map[string]any{
		"name":    "ocrway",
		"version": version.Version,
		"status":  "running",
		"uptime":  time.Since(h.StartTime).Round(time.Second).String(),
		"ocr":     "/ocr/extract",
		"vlm":     "/ocr/understand",
		"admin":   "/api/admin",
	}, http.StatusOK)
}

// HealthCheck reports the engine version and installed languages.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, types.HealthResponse{
		Status:             "healthy",
		Version:            version.Version,
		EngineVersion:      h.Extractor.Version(),
		AvailableLanguages: h.Extractor.Languages(r.Context()).Installed,
	}, http.StatusOK)
}

// ServiceInfo describes limits and capabilities (GET /info).
func (h *Handlers) ServiceInfo(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, types.InfoResponse{
		Name:             "ocrway",
		Version:          version.Version,
		AllowedLanguages: h.Info.AllowedLanguages,
		MaxFileSizeMB:    h.Info.MaxFileSizeMB,
		MaxBatchItems:    h.Info.MaxBatchItems,
		VLMModel:         h.Info.VLMModel,
		Presets:          vlm.PresetNames(),
	}, http.StatusOK)
}

// MetricsHandler serves Prometheus metrics, or 404 when disabled.
func (h *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Metrics == nil {
		types.WriteError(w, http.StatusNotFound, types.NotFound("metrics disabled"))
		return
	}
	h.Metrics.ServeHTTP(w, r)
}
