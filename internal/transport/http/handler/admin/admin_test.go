package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/storage/models"
	"github.com/mandalnilabja/ocrway/internal/storage/sqlite"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
	"github.com/mandalnilabja/ocrway/internal/types"
)

var testParams = &storage.PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func setupHandlers(t *testing.T) (*Handlers, *http.ServeMux) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)", url.PathEscape(t.Name()))
	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := storage.HashPassword("password123", testParams)
	require.NoError(t, err)
	require.NoError(t, store.SetAdminPasswordHash(context.Background(), hash))

	svc := admission.New(store, quota.NewGuard(), nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(svc, store, auth.NewTokenIssuer([]byte("test-secret"), time.Hour), "admin", logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/login", h.Login)
	mux.HandleFunc("POST /api/admin/keys", h.CreateKey)
	mux.HandleFunc("GET /api/admin/keys", h.ListKeys)
	mux.HandleFunc("GET /api/admin/keys/{id}", h.GetKeyStats)
	mux.HandleFunc("DELETE /api/admin/keys/{id}", h.DeleteKey)
	mux.HandleFunc("PATCH /api/admin/keys/{id}/toggle", h.ToggleKey)
	mux.HandleFunc("GET /api/admin/stats", h.Stats)
	mux.HandleFunc("PUT /api/admin/password", h.ChangePassword)
	return h, mux
}

func do(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	h, mux := setupHandlers(t)

	rec := do(t, mux, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "admin", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bearer", resp.TokenType)
	_, err := h.Issuer.Verify(resp.AccessToken)
	assert.NoError(t, err)

	rec = do(t, mux, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "root", Password: "password123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKeyLifecycle(t *testing.T) {
	_, mux := setupHandlers(t)

	perMinute := 5
	rec := do(t, mux, http.MethodPost, "/api/admin/keys", types.CreateKeyRequest{Name: "scanner", RateLimitPerMinute: &perMinute})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)
	key := created["key"].(string)
	assert.True(t, storage.HasSecretPrefix(key))
	assert.Equal(t, float64(5), created["rate_limit_per_minute"])
	assert.Equal(t, float64(1000), created["rate_limit_per_day"])
	assert.NotEmpty(t, created["message"])

	rec = do(t, mux, http.MethodGet, "/api/admin/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, models.MaskedKey, list[0]["key"])

	rec = do(t, mux, http.MethodGet, "/api/admin/keys/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats storage.CredentialStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "scanner", stats.Name)
	assert.Zero(t, stats.TotalRequests)

	rec = do(t, mux, http.MethodPatch, "/api/admin/keys/"+id+"/toggle?is_active=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPatch, "/api/admin/keys/"+id+"/toggle?is_active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary storage.UsageSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalCredentials)
	assert.Equal(t, 0, summary.ActiveCredentials)

	rec = do(t, mux, http.MethodDelete, "/api/admin/keys/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/admin/keys/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateKeyValidation(t *testing.T) {
	_, mux := setupHandlers(t)

	tooMany := admission.MaxPerMinute + 1
	tests := []struct {
		name string
		body any
	}{
		{"empty name", types.CreateKeyRequest{Name: ""}},
		{"limit too high", types.CreateKeyRequest{Name: "x", RateLimitPerMinute: &tooMany}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/admin/keys", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChangePassword(t *testing.T) {
	_, mux := setupHandlers(t)

	rec := do(t, mux, http.MethodPut, "/api/admin/password", types.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newpassword1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, mux, http.MethodPut, "/api/admin/password", types.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPut, "/api/admin/password", types.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "newpassword1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/admin/login", types.LoginRequest{Username: "admin", Password: "newpassword1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
