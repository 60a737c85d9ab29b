package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	now := time.Now()
	l := New(5)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("6th request allowed, want denied")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("other key should have its own bucket")
	}

	now = now.Add(12 * time.Second)
	if !l.Allow("1.2.3.4") {
		t.Error("one token should refill after 12s at 5/min")
	}
	if l.Allow("1.2.3.4") {
		t.Error("only one token should have refilled")
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("x") {
			t.Fatal("unlimited limiter denied a request")
		}
	}
}

func TestPerIP(t *testing.T) {
	l := New(2)
	h := PerIP(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "30" {
			t.Errorf("Retry-After = %q, want 30", rec.Header().Get("Retry-After"))
		}
	}
	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		fwd    string
		want   string
	}{
		{"remote addr", "192.168.1.5:4321", "", "192.168.1.5"},
		{"forwarded", "10.0.0.1:1", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"no port", "bare-host", "", "bare-host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.fwd != "" {
				req.Header.Set("X-Forwarded-For", tt.fwd)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
