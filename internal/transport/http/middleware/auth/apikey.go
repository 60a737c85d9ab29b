// Package auth provides authentication middleware for HTTP routes.
package auth

import (
	"context"
	"net/http"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/types"
)

// APIKeyHeader carries the caller's secret.
const APIKeyHeader = "X-API-Key"

// credentialContextKey is the context key for the admitted credential.
type credentialContextKey struct{}

// Admitter decides whether a presented secret may proceed.
type Admitter interface {
	Admit(ctx context.Context, rawSecret string) (*storage.Credential, error)
}

var _ Admitter = (*admission.Service)(nil)

// APIKeyAuth runs admission for every request. Rejections are written as
// JSON errors (401, or 429 with Retry-After) and the handler is not called.
func APIKeyAuth(admitter Admitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := admitter.Admit(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				types.WriteFromError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), credentialContextKey{}, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCredential retrieves the admitted credential from context.
func GetCredential(ctx context.Context) *storage.Credential {
	if cred, ok := ctx.Value(credentialContextKey{}).(*storage.Credential); ok {
		return cred
	}
	return nil
}
