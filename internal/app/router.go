package app

import (
	"log/slog"
	"net/http"

	"github.com/mandalnilabja/ocrway/internal/transport/http/handler"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/auth"
	"github.com/mandalnilabja/ocrway/internal/transport/http/middleware/ratelimit"
)

// LoginAttemptsPerMinute bounds admin login attempts per client address.
const LoginAttemptsPerMinute = 5

// RouterOptions configures the HTTP router behavior.
type RouterOptions struct {
	Logger       *slog.Logger
	Admitter     auth.Admitter
	Issuer       *auth.TokenIssuer
	LoginLimiter *ratelimit.Limiter
}

// NewRouter creates and configures the HTTP router with all application routes.
// Returns an http.Handler with middleware applied.
func NewRouter(repo *handler.Repo, opts *RouterOptions) http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth)
	mux.HandleFunc("GET /health", repo.Infra.HealthCheck)
	mux.HandleFunc("GET /info", repo.Infra.ServiceInfo)
	mux.HandleFunc("GET /metrics", repo.Infra.MetricsHandler)
	mux.HandleFunc("GET /", repo.Infra.RootStatus)

	// API key routes: admission runs before any body is read
	apiKey := auth.APIKeyAuth(opts.Admitter)
	withKey := func(h http.HandlerFunc) http.Handler {
		return apiKey(h)
	}

	mux.Handle("POST /ocr/extract", withKey(repo.Extract.Extract))
	mux.Handle("POST /ocr/extract/detailed", withKey(repo.Extract.ExtractDetailed))
	mux.Handle("POST /ocr/extract/hocr", withKey(repo.Extract.ExtractHOCR))
	mux.Handle("POST /ocr/batch", withKey(repo.Extract.Batch))
	mux.Handle("GET /ocr/languages", withKey(repo.Extract.Languages))

	mux.Handle("POST /ocr/understand", withKey(repo.Understand.Understand))
	mux.Handle("POST /ocr/understand/size-chart", withKey(repo.Understand.SizeChart))
	mux.Handle("POST /ocr/understand/batch", withKey(repo.Understand.Batch))
	mux.Handle("GET /ocr/understand/status", withKey(repo.Understand.Status))
	mux.Handle("GET /ocr/understand/presets", withKey(repo.Understand.Presets))

	registerAdminRoutes(mux, repo, opts)

	// Apply middleware chain (order: outer to inner)
	var h http.Handler = mux

	if opts.Logger != nil {
		h = middleware.RequestLogger(opts.Logger)(h)
	}
	h = middleware.RequestID(h)
	h = middleware.CORS(h)

	return h
}

// registerAdminRoutes adds all admin API routes to the router.
func registerAdminRoutes(mux *http.ServeMux, repo *handler.Repo, opts *RouterOptions) {
	limiter := opts.LoginLimiter
	if limiter == nil {
		limiter = ratelimit.New(LoginAttemptsPerMinute)
	}
	mux.Handle("POST /api/admin/login", ratelimit.PerIP(limiter)(http.HandlerFunc(repo.Admin.Login)))

	adminAuth := auth.AdminAuth(opts.Issuer)
	withAuth := func(h http.HandlerFunc) http.Handler {
		return adminAuth(h)
	}

	mux.Handle("POST /api/admin/keys", withAuth(repo.Admin.CreateKey))
	mux.Handle("GET /api/admin/keys", withAuth(repo.Admin.ListKeys))
	mux.Handle("GET /api/admin/keys/{id}", withAuth(repo.Admin.GetKeyStats))
	mux.Handle("DELETE /api/admin/keys/{id}", withAuth(repo.Admin.DeleteKey))
	mux.Handle("PATCH /api/admin/keys/{id}/toggle", withAuth(repo.Admin.ToggleKey))

	mux.Handle("GET /api/admin/stats", withAuth(repo.Admin.Stats))
	mux.Handle("PUT /api/admin/password", withAuth(repo.Admin.ChangePassword))
}
