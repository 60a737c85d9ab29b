package types

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries an admin bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CreateKeyRequest is the body of POST /api/admin/keys. Pointer fields
// distinguish unset from zero.
type CreateKeyRequest struct {
	Name               string `json:"name"`
	RateLimitPerMinute *int   `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerDay    *int   `json:"rate_limit_per_day,omitempty"`
	IsActive           *bool  `json:"is_active,omitempty"`
}

// ChangePasswordRequest is the body of PUT /api/admin/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
