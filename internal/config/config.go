package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAllowedLanguages is used when no allow-list is configured.
var DefaultAllowedLanguages = []string{
	"eng", "fra", "deu", "spa", "ita", "por", "nld", "pol", "rus", "jpn", "chi_sim", "chi_tra", "kor", "ara",
}

// Config holds application configuration loaded from environment and file.
// Priority: Env vars → config.toml → defaults
type Config struct {
	// ServerPort is the address to bind the server to (e.g., ":8000")
	ServerPort string

	// EnableMetrics exposes Prometheus metrics at /metrics
	EnableMetrics bool

	LogLevel string
	DataDir  string

	// Admin login. AdminPassword seeds the stored hash on first start only.
	AdminUsername string
	AdminPassword string
	JWTSecret     string

	MaxFileSizeMB    int
	AllowedLanguages []string

	// MaxImagePixels bounds width*height of images decoded for extraction
	MaxImagePixels int

	DefaultRateLimitPerMinute int
	DefaultRateLimitPerDay    int
	MaxBatchItems             int

	// TessdataPrefix overrides the engine's language data directory
	TessdataPrefix string

	VLM VLMConfig
}

// VLMConfig configures the remote understanding backend.
type VLMConfig struct {
	ServerURL     string
	Model         string
	DisplayModel  string
	Timeout       time.Duration
	HealthTimeout time.Duration
	MaxConcurrent int
	MaxImageDim   int
}

// Load reads configuration from file and environment variables.
// Environment variables override file config values.
func Load() *Config {
	fileConfig, _ := LoadFile() // Ignore error, use defaults
	if fileConfig == nil {
		fileConfig = &FileConfig{}
	}
	return fromFile(fileConfig)
}

func fromFile(f *FileConfig) *Config {
	return &Config{
		ServerPort:    getEnvOrFile("SERVER_PORT", f.ServerPort, ":8000"),
		EnableMetrics: getEnvBoolOrFile("ENABLE_METRICS", f.EnableMetrics, true),
		LogLevel:      getEnvOrFile("LOG_LEVEL", f.LogLevel, "info"),
		DataDir:       DataDir(),

		AdminUsername: getEnvOrFile("ADMIN_USERNAME", f.AdminUsername, "admin"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		JWTSecret:     getEnvOrFile("JWT_SECRET", f.JWTSecret, ""),

		MaxFileSizeMB:    getEnvIntOrFile("MAX_FILE_SIZE_MB", f.MaxFileSizeMB, 10),
		AllowedLanguages: getEnvListOrFile("ALLOWED_LANGUAGES", f.AllowedLanguages, DefaultAllowedLanguages),
		MaxImagePixels:   getEnvIntOrFile("MAX_IMAGE_PIXELS", f.MaxImagePixels, 12_000_000),

		DefaultRateLimitPerMinute: getEnvIntOrFile("DEFAULT_RATE_LIMIT_PER_MINUTE", f.DefaultRateLimitPerMinute, 60),
		DefaultRateLimitPerDay:    getEnvIntOrFile("DEFAULT_RATE_LIMIT_PER_DAY", f.DefaultRateLimitPerDay, 1000),
		MaxBatchItems:             getEnvIntOrFile("MAX_BATCH_ITEMS", f.MaxBatchItems, 10),

		TessdataPrefix: getEnvOrFile("TESSDATA_PREFIX", f.TessdataPrefix, ""),

		VLM: VLMConfig{
			ServerURL:     getEnvOrFile("VLM_SERVER_URL", f.VLM.ServerURL, "http://127.0.0.1:8081"),
			Model:         getEnvOrFile("VLM_MODEL", f.VLM.Model, "qwen3-vl"),
			DisplayModel:  getEnvOrFile("VLM_DISPLAY_MODEL", f.VLM.DisplayModel, "qwen3-vl-2b-thinking"),
			Timeout:       time.Duration(getEnvIntOrFile("VLM_TIMEOUT", f.VLM.TimeoutSeconds, 120)) * time.Second,
			HealthTimeout: time.Duration(getEnvIntOrFile("VLM_HEALTH_TIMEOUT", f.VLM.HealthSeconds, 5)) * time.Second,
			MaxConcurrent: getEnvIntOrFile("VLM_MAX_CONCURRENT", f.VLM.MaxConcurrent, 2),
			MaxImageDim:   getEnvIntOrFile("VLM_MAX_IMAGE_DIM", f.VLM.MaxImageDim, 512),
		},
	}
}

// MaxFileSize returns the upload ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.AdminUsername == "" {
		errs = append(errs, errors.New("admin username is required"))
	}
	if c.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("max file size must be positive, got %d", c.MaxFileSizeMB))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("max image pixels must be positive, got %d", c.MaxImagePixels))
	}
	if len(c.AllowedLanguages) == 0 {
		errs = append(errs, errors.New("at least one allowed language is required"))
	}
	if c.DefaultRateLimitPerMinute < 1 || c.DefaultRateLimitPerDay < 1 {
		errs = append(errs, errors.New("default rate limits must be at least 1"))
	}
	if c.MaxBatchItems < 1 {
		errs = append(errs, fmt.Errorf("max batch items must be at least 1, got %d", c.MaxBatchItems))
	}
	if c.VLM.ServerURL == "" {
		errs = append(errs, errors.New("vlm server url is required"))
	}
	if c.VLM.Timeout <= 0 || c.VLM.HealthTimeout <= 0 {
		errs = append(errs, errors.New("vlm timeouts must be positive"))
	}
	if c.VLM.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("vlm max concurrent must be at least 1, got %d", c.VLM.MaxConcurrent))
	}
	if c.VLM.MaxImageDim < 1 {
		errs = append(errs, fmt.Errorf("vlm max image dim must be positive, got %d", c.VLM.MaxImageDim))
	}
	return errors.Join(errs...)
}

// getEnvOrFile returns env value, file value, or default (in priority order)
func getEnvOrFile(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// getEnvBoolOrFile returns env bool, file bool, or default (in priority order)
func getEnvBoolOrFile(key string, fileValue *bool, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}

// getEnvIntOrFile returns env int, non-zero file int, or default. Unparseable
// env values fall through.
func getEnvIntOrFile(key string, fileValue, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return defaultValue
}

// getEnvListOrFile parses a comma-separated env list.
func getEnvListOrFile(key string, fileValue, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(fileValue) > 0 {
		return fileValue
	}
	return defaultValue
}
