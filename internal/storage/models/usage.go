package models

import "time"

// CredentialStats reports recent activity for one credential
type CredentialStats struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	TotalRequests    int64      `json:"total_requests"`
	RequestsToday    int        `json:"requests_today"`
	RequestsThisHour int        `json:"requests_this_hour"`
	LastUsedAt       *time.Time `json:"last_used,omitempty"`
}

// UsageSummary aggregates usage across all credentials
type UsageSummary struct {
	TotalCredentials     int   `json:"total_api_keys"`
	ActiveCredentials    int   `json:"active_api_keys"`
	TotalRequestsToday   int   `json:"total_requests_today"`
	TotalRequestsAllTime int64 `json:"total_requests_all_time"`
}
