// Package models contains data models for storage operations.
package models

import "time"

// Credential is an issued API credential with its own quota policy and
// usage history.
type Credential struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	SecretHash         string      `json:"-"`          // SHA-256 of the raw secret (never exposed in JSON)
	KeyPrefix          string      `json:"key_prefix"` // First 12 chars (e.g., "ocr_a1B2c3D4")
	IsActive           bool        `json:"is_active"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute"`
	RateLimitPerDay    int         `json:"rate_limit_per_day"`
	UsageEvents        []time.Time `json:"-"` // Ascending, trailing 24h only
	TotalRequests      int64       `json:"total_requests"`
	LastUsedAt         *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

// CredentialPreview is a safe representation (no hash, no usage history)
type CredentialPreview struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Key                string     `json:"key"`
	KeyPrefix          string     `json:"key_prefix"`
	IsActive           bool       `json:"is_active"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	RateLimitPerDay    int        `json:"rate_limit_per_day"`
	TotalRequests      int64      `json:"total_requests"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// MaskedKey is shown in place of a secret that is no longer retrievable.
const MaskedKey = "••••••••"

// ToPreview converts a Credential to a safe CredentialPreview
func (c *Credential) ToPreview() *CredentialPreview {
	return &CredentialPreview{
		ID:                 c.ID,
		Name:               c.Name,
		Key:                MaskedKey,
		KeyPrefix:          c.KeyPrefix,
		IsActive:           c.IsActive,
		RateLimitPerMinute: c.RateLimitPerMinute,
		RateLimitPerDay:    c.RateLimitPerDay,
		TotalRequests:      c.TotalRequests,
		LastUsedAt:         c.LastUsedAt,
		CreatedAt:          c.CreatedAt,
	}
}
