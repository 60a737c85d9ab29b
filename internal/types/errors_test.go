package types

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/batch"
	"github.com/mandalnilabja/ocrway/internal/imaging"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		wantType string
	}{
		{"auth", &admission.AuthError{Reason: "Invalid or inactive API key"}, http.StatusUnauthorized, ErrorTypeAuthentication},
		{"quota", &admission.QuotaExceededError{Reason: quota.ReasonPerMinute, RetryAfter: time.Second}, http.StatusTooManyRequests, ErrorTypeRateLimit},
		{"language", &ocr.LanguageNotAllowedError{Language: "xyz", Allowed: []string{"eng"}}, http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"too many", fmt.Errorf("wrap: %w", batch.ErrTooManyItems), http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"invalid", Invalidf("psm must be 0-13"), http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"not image", ErrNotImage, http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"oversize", &http.MaxBytesError{Limit: 10 << 20}, http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"store input", storage.ErrInvalidInput, http.StatusBadRequest, ErrorTypeInvalidRequest},
		{"not found", storage.ErrNotFound, http.StatusNotFound, ErrorTypeNotFound},
		{"decode", fmt.Errorf("%w: bad header", imaging.ErrDecode), http.StatusUnprocessableEntity, ErrorTypeUnprocessable},
		{"engine", &ocr.EngineError{Op: "text", Err: errors.New("boom")}, http.StatusInternalServerError, ErrorTypeServer},
		{"unavailable", fmt.Errorf("%w: refused", vlm.ErrBackendUnavailable), http.StatusServiceUnavailable, ErrorTypeServiceUnavailable},
		{"timeout", vlm.ErrBackendTimeout, http.StatusGatewayTimeout, ErrorTypeTimeout},
		{"backend", &vlm.BackendError{StatusCode: 500, Body: "x"}, http.StatusBadGateway, ErrorTypeBadGateway},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError, ErrorTypeServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := FromError(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if apiErr.Error.Type != tt.wantType {
				t.Errorf("type = %q, want %q", apiErr.Error.Type, tt.wantType)
			}
		})
	}
}

func TestFromErrorHidesInternalDetail(t *testing.T) {
	_, apiErr := FromError(errors.New("sql: connection refused at 10.0.0.1"))
	if apiErr.Error.Message != "Internal server error" {
		t.Errorf("message = %q", apiErr.Error.Message)
	}
}

func TestWriteFromErrorRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFromError(w, &admission.QuotaExceededError{Reason: quota.ReasonPerMinute, RetryAfter: 1500 * time.Millisecond})

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
