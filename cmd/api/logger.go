package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mandalnilabja/ocrway/internal/config"
	"github.com/mandalnilabja/ocrway/internal/version"
)

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}

func printStartupBanner(cfg *config.Config, engineVersion string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "OCRway %s - OCR and Image Understanding Service\n", version.Version)
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "OCR API:    http://localhost%s/ocr/extract\n", cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "VLM API:    http://localhost%s/ocr/understand\n", cfg.ServerPort)
	fmt.Fprintf(os.Stderr, "Admin API:  http://localhost%s/api/admin/\n", cfg.ServerPort)
	if cfg.EnableMetrics {
		fmt.Fprintf(os.Stderr, "Metrics:    http://localhost%s/metrics\n", cfg.ServerPort)
	}
	fmt.Fprintf(os.Stderr, "Tesseract:  %s\n", engineVersion)
	fmt.Fprintf(os.Stderr, "VLM server: %s\n", cfg.VLM.ServerURL)
	fmt.Fprintf(os.Stderr, "Data:       %s\n", config.DataDir())
	fmt.Fprintln(os.Stderr, "════════════════════════════════════════════════")
	fmt.Fprintf(os.Stderr, "\n")
}
