package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/batch"
	"github.com/mandalnilabja/ocrway/internal/imaging"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

// APIError is the JSON error envelope.
type APIError struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param,omitempty"`
	Code    *string `json:"code,omitempty"`
}

// Error type constants
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypeNotFound           = "not_found_error"
	ErrorTypeRateLimit          = "rate_limit_error"
	ErrorTypeUnprocessable      = "unprocessable_error"
	ErrorTypeServer             = "server_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeTimeout            = "timeout_error"
	ErrorTypeBadGateway         = "bad_gateway"
)

// Request-level validation failures raised by the transport layer.
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNotImage        = errors.New("file must be an image")
	ErrUnauthenticated = errors.New("unauthorized")
)

// NewAPIError creates a new API error.
func NewAPIError(message, errType string) *APIError {
	return &APIError{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
		},
	}
}

// NewAPIErrorWithCode creates a new API error with a code.
func NewAPIErrorWithCode(message, errType, code string) *APIError {
	return &APIError{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    &code,
		},
	}
}

// NewAPIErrorWithParam creates a new API error with a parameter reference.
func NewAPIErrorWithParam(message, errType, param string) *APIError {
	return &APIError{
		Error: ErrorDetail{
			Message: message,
			Type:    errType,
			Param:   &param,
		},
	}
}

// Invalidf wraps ErrInvalidRequest with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// FromError maps a domain error to an HTTP status and error envelope.
func FromError(err error) (int, *APIError) {
	var (
		quotaErr    *admission.QuotaExceededError
		authErr     *admission.AuthError
		langErr     *ocr.LanguageNotAllowedError
		engineErr   *ocr.EngineError
		backendErr  *vlm.BackendError
		maxBytesErr *http.MaxBytesError
	)

	switch {
	case errors.As(err, &quotaErr):
		return http.StatusTooManyRequests, NewAPIErrorWithCode(quotaErr.Error(), ErrorTypeRateLimit, string(quotaErr.Reason))
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, NewAPIError(authErr.Reason, ErrorTypeAuthentication)
	case errors.Is(err, admission.ErrAuthentication), errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, NewAPIError(err.Error(), ErrorTypeAuthentication)
	case errors.As(err, &langErr):
		return http.StatusBadRequest, NewAPIErrorWithParam(langErr.Error(), ErrorTypeInvalidRequest, "language")
	case errors.As(err, &maxBytesErr):
		return http.StatusBadRequest, NewAPIErrorWithCode(
			fmt.Sprintf("File too large. Maximum size: %dMB", maxBytesErr.Limit>>20),
			ErrorTypeInvalidRequest, "file_too_large")
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusBadRequest, NewAPIErrorWithCode(err.Error(), ErrorTypeInvalidRequest, "file_too_large")
	case errors.Is(err, ErrNotImage):
		return http.StatusBadRequest, NewAPIErrorWithCode(err.Error(), ErrorTypeInvalidRequest, "invalid_file")
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, batch.ErrNoItems),
		errors.Is(err, batch.ErrTooManyItems),
		errors.Is(err, ocr.ErrInvalidParams),
		errors.Is(err, vlm.ErrInvalidRequest),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest, NewAPIError(err.Error(), ErrorTypeInvalidRequest)
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, NewAPIError("API key not found", ErrorTypeNotFound)
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusUnprocessableEntity, NewAPIError(err.Error(), ErrorTypeUnprocessable)
	case errors.As(err, &engineErr):
		return http.StatusInternalServerError, NewAPIError(engineErr.Error(), ErrorTypeServer)
	case errors.Is(err, vlm.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, NewAPIError(err.Error(), ErrorTypeServiceUnavailable)
	case errors.Is(err, vlm.ErrBackendTimeout):
		return http.StatusGatewayTimeout, NewAPIError(err.Error(), ErrorTypeTimeout)
	case errors.As(err, &backendErr):
		return http.StatusBadGateway, NewAPIError(backendErr.Error(), ErrorTypeBadGateway)
	default:
		return http.StatusInternalServerError, NewAPIError("Internal server error", ErrorTypeServer)
	}
}

// Kind returns the error type FromError would report for err.
func Kind(err error) string {
	_, apiErr := FromError(err)
	return apiErr.Error.Type
}

// WriteError writes an API error to the response writer.
func WriteError(w http.ResponseWriter, statusCode int, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(err)
}

// WriteFromError maps err with FromError and writes it, adding Retry-After
// for quota rejections.
func WriteFromError(w http.ResponseWriter, err error) {
	var quotaErr *admission.QuotaExceededError
	if errors.As(err, &quotaErr) && quotaErr.RetryAfter > 0 {
		secs := int(math.Ceil(quotaErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	status, apiErr := FromError(err)
	WriteError(w, status, apiErr)
}

// Common error constructors

// InvalidRequest creates an invalid request error.
func InvalidRequest(message string) *APIError {
	return NewAPIError(message, ErrorTypeInvalidRequest)
}

// Unauthenticated creates an authentication error.
func Unauthenticated(message string) *APIError {
	return NewAPIError(message, ErrorTypeAuthentication)
}

// RateLimited creates a rate limit error.
func RateLimited(message string) *APIError {
	return NewAPIError(message, ErrorTypeRateLimit)
}

// ServerError creates a server error.
func ServerError(message string) *APIError {
	return NewAPIError(message, ErrorTypeServer)
}

// NotFound creates a not found error.
func NotFound(message string) *APIError {
	return NewAPIError(message, ErrorTypeNotFound)
}
