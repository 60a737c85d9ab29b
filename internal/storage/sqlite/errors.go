package sqlite

import (
	"errors"
	"strings"
	"time"
)

// Common errors returned by storage operations
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidInput  = errors.New("invalid input")
	ErrStorageClosed = errors.New("storage is closed")
)

// UsageRetention is the trailing window of usage events kept per credential.
const UsageRetention = 24 * time.Hour

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
