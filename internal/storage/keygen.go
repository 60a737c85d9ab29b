package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	// SecretPrefix is the prefix for all issued API secrets
	SecretPrefix = "ocr_"
	// SecretLength is the number of random characters after the prefix
	SecretLength = 43
	// KeyPrefixLen is the length of the identifying prefix (e.g., "ocr_a1B2c3D4")
	KeyPrefixLen = 12 // "ocr_" + 8 chars
	// CredentialIDPrefix marks credential identifiers
	CredentialIDPrefix = "key_"
)

// base62Alphabet contains characters for key generation (0-9, A-Z, a-z)
var base62Alphabet = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// GenerateSecret creates a new raw API secret with format: ocr_ + 43 base62 chars
func GenerateSecret() (string, error) {
	result := make([]byte, SecretLength)
	alphabetLen := big.NewInt(int64(len(base62Alphabet)))

	for i := 0; i < SecretLength; i++ {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		result[i] = base62Alphabet[idx.Int64()]
	}

	return SecretPrefix + string(result), nil
}

// GenerateCredentialID creates an opaque credential identifier (key_ + 16 hex chars)
func GenerateCredentialID() (string, error) {
	b, err := GenerateRandomBytes(8)
	if err != nil {
		return "", err
	}
	return CredentialIDPrefix + hex.EncodeToString(b), nil
}

// HashSecret returns the one-way digest stored in place of a raw secret.
// Lookups match on this digest; raw secrets are never compared.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HasSecretPrefix reports whether raw looks like an issued secret.
func HasSecretPrefix(raw string) bool {
	return strings.HasPrefix(raw, SecretPrefix)
}

// ExtractKeyPrefix returns the first 12 chars of a secret for identification
func ExtractKeyPrefix(key string) string {
	if len(key) < KeyPrefixLen {
		return key
	}
	return key[:KeyPrefixLen]
}
