package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mandalnilabja/ocrway/internal/types"
)

// AdminTokenTTL is the lifetime of an issued admin token.
const AdminTokenTTL = 7 * 24 * time.Hour

const adminTokenType = "admin"

var ErrInvalidToken = errors.New("invalid or expired token")

// AdminClaims are the claims carried by an admin bearer token.
type AdminClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies admin tokens with HS256.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A zero ttl uses AdminTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = AdminTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for username.
func (t *TokenIssuer) Issue(username string) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := AdminClaims{
		Type: adminTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses a token and checks its signature, expiry and type.
func (t *TokenIssuer) Verify(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != adminTokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type adminContextKey struct{}

// AdminAuth protects admin routes with a bearer token from TokenIssuer.
func AdminAuth(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "authorization required")
				return
			}

			claims, err := issuer.Verify(strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), adminContextKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdmin returns the authenticated admin username.
func GetAdmin(ctx context.Context) string {
	name, _ := ctx.Value(adminContextKey{}).(string)
	return name
}

// writeUnauthorized writes a JSON 401 response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	types.WriteError(w, http.StatusUnauthorized, types.Unauthenticated(message))
}
