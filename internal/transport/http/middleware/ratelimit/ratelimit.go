// Package ratelimit provides rate limiting middleware using token bucket algorithm.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mandalnilabja/ocrway/internal/types"
)

// bucket represents a token bucket for rate limiting.
type bucket struct {
	tokens   float64
	lastFill time.Time
	mu       sync.Mutex
}

// Limiter tracks per-key token buckets refilled over one minute.
type Limiter struct {
	buckets   sync.Map // map[key]*bucket
	perMinute int
	now       func() time.Time
}

// New creates a limiter allowing perMinute requests per key.
func New(perMinute int) *Limiter {
	return &Limiter{perMinute: perMinute, now: time.Now}
}

// Allow checks if a request is allowed under the rate limit.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	rateLimit := l.perMinute
	if rateLimit <= 0 {
		return true // 0 = unlimited
	}

	now := l.now()
	val, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens:   float64(rateLimit),
		lastFill: now,
	})
	b := val.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastFill).Seconds()
	refillRate := float64(rateLimit) / 60.0 // tokens per second
	b.tokens += elapsed * refillRate
	if b.tokens > float64(rateLimit) {
		b.tokens = float64(rateLimit) // cap at max capacity
	}
	b.lastFill = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true
	}
	return false
}

// retryAfter is the wait until one token is available again.
func (l *Limiter) retryAfter() time.Duration {
	if l.perMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(l.perMinute)
}

// PerIP returns middleware limiting requests by client address.
func PerIP(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				secs := int(limiter.retryAfter().Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				types.WriteError(w, http.StatusTooManyRequests,
					types.RateLimited("Too many login attempts. Try again later."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For entry, or the remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
