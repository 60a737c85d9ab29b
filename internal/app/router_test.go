package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandalnilabja/ocrway/internal/admission"
	"github.com/mandalnilabja/ocrway/internal/config"
	"github.com/mandalnilabja/ocrway/internal/metrics"
	"github.com/mandalnilabja/ocrway/internal/ocr"
	"github.com/mandalnilabja/ocrway/internal/quota"
	"github.com/mandalnilabja/ocrway/internal/storage"
	"github.com/mandalnilabja/ocrway/internal/storage/sqlite"
	"github.com/mandalnilabja/ocrway/internal/transport/http/handler"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/ratelimit"
	"github.com/mandalnilabja/ocrway/internal/vlm"
)

type engine struct{ calls int }

func (e *engine) Text(context.Context, []byte, ocr.EngineOptions) (string, error) {
	e.calls++
	return "invoice 42", nil
}

func (e *engine) Tokens(context.Context, []byte, ocr.EngineOptions) ([]ocr.Token, error) {
	return []ocr.Token{{Text: "invoice", Confidence: 91}, {Text: "42", Confidence: 89}}, nil
}

func (e *engine) HOCR(context.Context, []byte, ocr.EngineOptions) (string, error) {
	return "<html/>", nil
}

func (e *engine) Languages() ([]string, error) { return []string{"eng"}, nil }
func (e *engine) Version() string { return "5.3.0" }

type dispatcher struct{}

func (dispatcher) Understand(context.Context, []byte, vlm.Request) (*vlm.Result, error) {
	return &vlm.Result{Content: "a cat", Model: "qwen3-vl-2b-thinking"}, nil
}

func (dispatcher) Status(context.Context) vlm.Status {
	return vlm.Status{Status: vlm.StatusOffline, Error: "connection refused"}
}

type testServer struct {
	handler http.Handler
	svc     *admission.Service
	engine  *engine
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	t.Setenv("OCRWAY_DATA_DIR", t.TempDir())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)", url.PathEscape(t.Name()))
	store, err := sqlite.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash, err := storage.HashPassword("password123",
		&storage.PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	require.NoError(t, store.SetAdminPasswordHash(context.Background(), hash))

	cfg := config.Load()
	cfg.AllowedLanguages = []string{"eng"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := admission.New(store, quota.NewGuard(), logger)
	issuer := auth.NewTokenIssuer([]byte("test"), time.Hour)
	eng := &engine{}

	repo := handler.NewRepo(handler.Deps{
		Config:     cfg,
		Storage:    store,
		Admission:  svc,
		Issuer:     issuer,
		Extractor:  ocr.NewExtractor(eng, cfg.AllowedLanguages, nil, logger),
		Dispatcher: dispatcher{},
		Metrics:    metrics.Handler(),
		Logger:     logger,
	})
	h := NewRouter(repo, &RouterOptions{
		Logger:       logger,
		Admitter:     svc,
		Issuer:       issuer,
		LoginLimiter: ratelimit.New(LoginAttemptsPerMinute),
	})

	token, _, err := issuer.Issue("admin")
	require.NoError(t, err)
	return &testServer{handler: h, svc: svc, engine: eng, token: token}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func imageUpload(t *testing.T, target, key string) *http.Request {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 10, 10))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if key != "" {
		req.Header.Set(auth.APIKeyHeader, key)
	}
	return req
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/", "/health", "/info", "/metrics"} {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestExtractRequiresKey(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, imageUpload(t, "/ocr/extract", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "X-API-Key")

	rec = s.do(t, imageUpload(t, "/ocr/extract", "ocr_notarealkey"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, s.engine.calls)
}

func TestExtractWithQuota(t *testing.T) {
	s := newTestServer(t)

	_, key, err := s.svc.Create(context.Background(), admission.CreateParams{
		Name: "scanner", RateLimitPerMinute: 2, RateLimitPerDay: 100, IsActive: true,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := s.do(t, imageUpload(t, "/ocr/extract", key))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), "invoice 42")
	}

	rec := s.do(t, imageUpload(t, "/ocr/extract", key))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, s.engine.calls)

	req := httptest.NewRequest(http.MethodGet, "/ocr/understand/status", nil)
	req.Header.Set(auth.APIKeyHeader, key)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, req).Code)
}

func TestUnderstandRoutes(t *testing.T) {
	s := newTestServer(t)
	_, key, err := s.svc.Create(context.Background(), admission.CreateParams{
		Name: "vlm", RateLimitPerMinute: 10, RateLimitPerDay: 100, IsActive: true,
	})
	require.NoError(t, err)

	rec := s.do(t, imageUpload(t, "/ocr/understand?preset=table", key))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "a cat")

	req := httptest.NewRequest(http.MethodGet, "/ocr/understand/status", nil)
	req.Header.Set(auth.APIKeyHeader, key)
	rec = s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), vlm.StatusOffline)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/keys", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, _ := json.Marshal(map[string]any{"name": "from-admin"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/keys", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = s.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = s.do(t, imageUpload(t, "/ocr/extract/detailed", created.Key))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t)

	body := `{"username":"admin","password":"wrong"}`
	var last int
	for i := 0; i < LoginAttemptsPerMinute+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewBufferString(body))
		req.RemoteAddr = "198.51.100.9:1234"
		last = s.do(t, req).Code
		if i < LoginAttemptsPerMinute {
			assert.Equal(t, http.StatusUnauthorized, last)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
