package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Errors returned when an encoded admin password hash cannot be parsed.
var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrUnsupportedHash     = errors.New("unsupported algorithm")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// PasswordParams holds the Argon2id hashing parameters used for the admin
// password. API secrets use HashSecret instead because they must be looked
// up by equality.
type PasswordParams struct {
	Memory      uint32 // Memory in KB
	Iterations  uint32 // Time parameter
	Parallelism uint8  // Threads
	SaltLength  uint32 // Salt bytes
	KeyLength   uint32 // Output hash bytes
}

// DefaultPasswordParams returns 64MB, 1 iteration, 4 threads, 16 byte salt, 32 byte key.
func DefaultPasswordParams() *PasswordParams {
	return &PasswordParams{
		Memory:      64 * 1024,
		Iterations:  1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// HashPassword returns an encoded hash: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func HashPassword(password string, params *PasswordParams) (string, error) {
	if params == nil {
		params = DefaultPasswordParams()
	}

	salt, err := GenerateRandomBytes(params.SaltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := params.derive(password, salt)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		params.Memory,
		params.Iterations,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks password against an encoded hash in constant time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	params, salt, want, err := parsePasswordHash(encodedHash)
	if err != nil {
		return false, err
	}

	got := params.derive(password, salt)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// GenerateRandomBytes generates cryptographically secure random bytes
func GenerateRandomBytes(n uint32) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PasswordParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
}

func parsePasswordHash(encoded string) (*PasswordParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, ErrInvalidHash
	}
	if parts[1] != "argon2id" {
		return nil, nil, nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, nil, nil, ErrIncompatibleVersion
	}

	params := &PasswordParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	params.SaltLength = uint32(len(salt))

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: key: %v", ErrInvalidHash, err)
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}
