package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/app"
	"github.com/mandalnilabja/ocrway/internal/config"
	"github.com/mandalnilabja/ocrway/internal/metrics"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/ocr/tesseract"
	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/tokenizer"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/ratelimit"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ocrway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := config.EnsureConfigFile(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	store, err := storage.NewSQLiteStorage(config.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	if err := ensureAdminPassword(ctx, store, cfg.AdminPassword); err != nil {
		return err
	}

	secret, err := jwtSecret(cfg, logger)
	if err != nil {
		return err
	}
	issuer := auth.NewTokenIssuer(secret, auth.AdminTokenTTL)

	lookups, err := admission.NewLookupCache()
	if err != nil {
		return fmt.Errorf("failed to create lookup cache: %w", err)
	}
	defer lookups.Close()
	svc := admission.New(store, quota.NewGuard(), logger, admission.WithLookupCache(lookups))

	langs, err := ocr.NewLanguageCache()
	if err != nil {
		return fmt.Errorf("failed to create language cache: %w", err)
	}
	defer langs.Close()
	engine := tesseract.New(cfg.TessdataPrefix)
	defer engine.Close()
	extractor := ocr.NewExtractor(engine, cfg.AllowedLanguages, langs, logger, ocr.WithMaxPixels(cfg.MaxImagePixels))

	dispatcher := vlm.NewDispatcher(vlm.Config{
		ServerURL:     cfg.VLM.ServerURL,
		Model:         cfg.VLM.Model,
		DisplayModel:  cfg.VLM.DisplayModel,
		Timeout:       cfg.VLM.Timeout,
		HealthTimeout: cfg.VLM.HealthTimeout,
		MaxImageDim:   cfg.VLM.MaxImageDim,
	}, vlm.NewGate(cfg.VLM.MaxConcurrent), tokenizer.New(), logger)
	defer dispatcher.Close()

	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		metricsHandler = metrics.Handler()
	}

	repo := handler.NewRepo(handler.Deps{
		Config:     cfg,
		Storage:    store,
		Admission:  svc,
		Issuer:     issuer,
		Extractor:  extractor,
		Dispatcher: dispatcher,
		Metrics:    metricsHandler,
		Logger:     logger,
	})

	router := app.NewRouter(repo, &app.RouterOptions{
		Logger:       logger,
		Admitter:     svc,
		Issuer:       issuer,
		LoginLimiter: ratelimit.New(app.LoginAttemptsPerMinute),
	})

	printStartupBanner(cfg, extractor.Version())

	return app.NewServer(cfg, router, logger).Run(ctx)
}

// jwtSecret returns the configured signing secret, or a random one that
// invalidates admin tokens on restart.
func jwtSecret(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	b, err := storage.GenerateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	logger.Warn("JWT_SECRET not set, using a random secret; admin tokens will not survive a restart")
	return b, nil
}
