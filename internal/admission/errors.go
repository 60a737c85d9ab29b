package admission

import (
	"errors"
	"time"

	"github.com/mandalnilabja/ocrway/internal/quota"
)

// ErrAuthentication is matched by every *AuthError.
var ErrAuthentication = errors.New("authentication failed")

// AuthError explains why a presented secret was not accepted.
type AuthError struct {
	Reason string
}

const (
	authMissing = "Missing API key. Include 'X-API-Key' header."
	authInvalid = "Invalid or inactive API key"
)

func (e *AuthError) Error() string {
	return e.Reason
}

func (e *AuthError) Unwrap() error {
	return ErrAuthentication
}

// QuotaExceededError is returned when a credential is over one of its limits.
type QuotaExceededError struct {
	Reason     quota.Reason
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return e.Reason.Message()
}
