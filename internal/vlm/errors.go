package vlm

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means the backend failed its health check or
	// could not be reached.
	ErrBackendUnavailable = errors.New("VLM server unavailable")
	// ErrBackendTimeout means the main call exceeded the configured timeout.
	ErrBackendTimeout = errors.New("VLM request timed out")
)

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("VLM server error: %d - %s", e.StatusCode, e.Body)
}
