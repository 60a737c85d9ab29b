package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file structure.
type FileConfig struct {
	ServerPort                string   `toml:"server_port"`
	EnableMetrics             *bool    `toml:"enable_metrics"`
	LogLevel                  string   `toml:"log_level"`
	AdminUsername             string   `toml:"admin_username"`
	JWTSecret                 string   `toml:"jwt_secret"`
	MaxFileSizeMB             int      `toml:"max_file_size_mb"`
	AllowedLanguages          []string `toml:"allowed_languages"`
	MaxImagePixels            int      `toml:"max_image_pixels"`
	DefaultRateLimitPerMinute int      `toml:"default_rate_limit_per_minute"`
	DefaultRateLimitPerDay    int      `toml:"default_rate_limit_per_day"`
	MaxBatchItems             int      `toml:"max_batch_items"`
	TessdataPrefix            string   `toml:"tessdata_prefix"`
	VLM                       VLMFile  `toml:"vlm"`
}

// VLMFile is the [vlm] table.
type VLMFile struct {
	ServerURL      string `toml:"server_url"`
	Model          string `toml:"model"`
	DisplayModel   string `toml:"display_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	HealthSeconds  int    `toml:"health_timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	MaxImageDim    int    `toml:"max_image_dim"`
}

// ConfigPath returns the path to the config file (~/.ocrway/config.toml).
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadFile loads configuration from the TOML file.
// Returns an empty FileConfig if the file doesn't exist.
func LoadFile() (*FileConfig, error) {
	return loadFileFrom(ConfigPath())
}

func loadFileFrom(path string) (*FileConfig, error) {
	cfg := &FileConfig{}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureConfigFile creates a default config file with commented examples if none exists.
func EnsureConfigFile() error {
	path := ConfigPath()

	// If config already exists, do nothing
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := EnsureDataDir(); err != nil {
		return err
	}

	defaultConfig := `# Ocrway Configuration
# server_port = ":8000"
# enable_metrics = true
# log_level = "info"
# admin_username = "admin"
# jwt_secret = "change-me"
# max_file_size_mb = 10
# allowed_languages = ["eng", "fra", "deu"]
# max_image_pixels = 12000000
# default_rate_limit_per_minute = 60
# default_rate_limit_per_day = 1000
# max_batch_items = 10
# tessdata_prefix = "/usr/share/tesseract-ocr/5/tessdata"

# Remote understanding backend (llama.cpp server)
# [vlm]
# server_url = "http://127.0.0.1:8081"
# model = "qwen3-vl"
# display_model = "qwen3-vl-2b-thinking"
# timeout_seconds = 120
# health_timeout_seconds = 5
# max_concurrent = 2
# max_image_dim = 512
`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
