// Package quota implements the sliding-window request quota check.
//
// The guard is pure: it never reads or writes storage and never counts the
// request being evaluated. Callers serialize evaluate-then-record per
// credential.
package quota

import (
	"time"

	"github.com/mandalnilabja/ocrway/internal/storage/models"
)

const (
	// MinuteWindow is the short sliding window.
	MinuteWindow = time.Minute
	// DayWindow is the long sliding window; it matches the usage retention.
	DayWindow = 24 * time.Hour
)

// Reason identifies which limit denied a request.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonPerMinute Reason = "per_minute"
	ReasonPerDay    Reason = "per_day"
)

// Message is the human readable explanation returned to clients.
func (r Reason) Message() string {
	switch r {
	case ReasonPerMinute:
		return "Rate limit exceeded: too many requests per minute"
	case ReasonPerDay:
		return "Rate limit exceeded: daily limit reached"
	default:
		return ""
	}
}

// Window returns the window the reason was measured over.
func (r Reason) Window() time.Duration {
	if r == ReasonPerDay {
		return DayWindow
	}
	return MinuteWindow
}

// Decision is the derived outcome of a quota check. It is never stored.
type Decision struct {
	Allowed bool
	Reason  Reason
	// RetryAfter is how long until the oldest counted event leaves the
	// violated window. Zero when Allowed.
	RetryAfter time.Duration
}

// Guard evaluates credentials against their own limits.
type Guard struct{}

// NewGuard creates a quota guard.
func NewGuard() *Guard {
	return &Guard{}
}

// EvaluateCredential checks cred's recorded usage against its limits.
func (g *Guard) EvaluateCredential(cred *models.Credential, now time.Time) Decision {
	return Evaluate(cred.UsageEvents, cred.RateLimitPerMinute, cred.RateLimitPerDay, now)
}

// Evaluate applies the per-minute limit first, then the per-day limit.
// events must be ascending. Only events strictly after now-window count.
func Evaluate(events []time.Time, perMinute, perDay int, now time.Time) Decision {
	minuteStart := now.Add(-MinuteWindow)
	if CountSince(events, minuteStart) >= perMinute {
		return deny(events, ReasonPerMinute, minuteStart)
	}

	dayStart := now.Add(-DayWindow)
	if CountSince(events, dayStart) >= perDay {
		return deny(events, ReasonPerDay, dayStart)
	}

	return Decision{Allowed: true}
}

// CountSince counts events strictly after since.
func CountSince(events []time.Time, since time.Time) int {
	n := 0
	for _, ts := range events {
		if ts.After(since) {
			n++
		}
	}
	return n
}

// Prune keeps events strictly after now-DayWindow. It returns a new slice
// and is idempotent for a fixed now.
func Prune(events []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-DayWindow)
	kept := make([]time.Time, 0, len(events))
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func deny(events []time.Time, reason Reason, windowStart time.Time) Decision {
	d := Decision{Reason: reason}
	for _, ts := range events {
		if ts.After(windowStart) {
			// oldest counted event; it expires one window after it happened
			d.RetryAfter = ts.Sub(windowStart)
			break
		}
	}
	if d.RetryAfter <= 0 {
		d.RetryAfter = time.Second
	}
	return d
}
