package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLimiter(t *testing.T, limits RateLimits) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(limits)
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := newTestLimiter(t, RateLimits{Upload: 3, Requests: 3, Download: 3})

	for i := 0; i < 3; i++ {
		if !rl.checkLimit("1.2.3.4", 3) {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.checkLimit("1.2.3.4", 3) {
		t.Error("request over limit should be denied")
	}
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := newTestLimiter(t, RateLimits{Upload: 1, Requests: 1, Download: 1})

	if !rl.checkLimit("1.1.1.1", 1) {
		t.Error("first IP should be allowed")
	}
	if !rl.checkLimit("2.2.2.2", 1) {
		t.Error("second IP should have its own window")
	}
	if rl.checkLimit("1.1.1.1", 1) {
		t.Error("first IP should now be limited")
	}
}

func TestRateLimiter_LimitFor(t *testing.T) {
	rl := newTestLimiter(t, RateLimits{Upload: 10, Requests: 20, Download: 30})

	tests := []struct {
		path      string
		wantLimit int
		wantType  string
	}{
		{"/api/upload/initiate", 10, "upload"},
		{"/api/upload/chunk", 10, "upload"},
		{"/api/requests", 20, "requests"},
		{"/api/requests/aB3dE5fG7hJ9", 20, "requests"},
		{"/api/download/xY1zW2vU3tS4", 30, "download"},
		{"/api/download/xY1zW2vU3tS4/key", 30, "download"},
		{"/health", 0, ""},
		{"/metrics", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			limit, limitType := rl.limitFor(tt.path)
			if limit != tt.wantLimit || limitType != tt.wantType {
				t.Errorf("limitFor(%q) = (%d, %q), want (%d, %q)",
					tt.path, limit, limitType, tt.wantLimit, tt.wantType)
			}
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newTestLimiter(t, RateLimits{Upload: 1, Requests: 1, Download: 1})

	handler := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/upload/initiate", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3600" {
		t.Errorf("Retry-After = %q, want %q", rec.Header().Get("Retry-After"), "3600")
	}

	// Health endpoint is never limited
	healthReq := httptest.NewRequest("GET", "/health", nil)
	healthReq.RemoteAddr = "9.9.9.9:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, healthReq)
	if rec.Code != http.StatusOK {
		t.Errorf("health request status = %d, want 200", rec.Code)
	}
}
