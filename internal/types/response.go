package types

import "github.com/mandalnilabja/ocrway/internal/storage/models"

// CreateKeyResponse includes the raw secret, shown exactly once.
type CreateKeyResponse struct {
	*models.CredentialPreview
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status             string   `json:"status"`
	Version            string   `json:"version"`
	EngineVersion      string   `json:"tesseract_version"`
	AvailableLanguages []string `json:"available_languages"`
}

// InfoResponse is returned by GET /info.
type InfoResponse struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	AllowedLanguages []string `json:"allowed_languages"`
	MaxFileSizeMB    int      `json:"max_file_size_mb"`
	MaxBatchItems    int      `json:"max_batch_items"`
	VLMModel         string   `json:"vlm_model"`
	Presets          []string `json:"understand_presets"`
}
