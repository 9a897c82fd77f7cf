package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimits holds the per-hour request limits for each endpoint class.
type RateLimits struct {
	Upload   int // upload initiate/chunk/complete
	Requests int // access request creation and polling
	Download int // file and key downloads
}

// requestRecord tracks request timestamps for an IP
type requestRecord struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// RateLimiter enforces sliding one-hour windows per IP address.
type RateLimiter struct {
	limits  RateLimits
	records sync.Map // map[string]*requestRecord
	cleanup *time.Ticker
}

// NewRateLimiter creates a new rate limiter with the given limits.
func NewRateLimiter(limits RateLimits) *RateLimiter {
	rl := &RateLimiter{
		limits:  limits,
		cleanup: time.NewTicker(1 * time.Hour),
	}

	go rl.cleanupOldEntries()

	return rl
}

// cleanupOldEntries removes entries older than 1 hour
func (rl *RateLimiter) cleanupOldEntries() {
	for range rl.cleanup.C {
		now := time.Now()
		rl.records.Range(func(key, value interface{}) bool {
			record := value.(*requestRecord)
			record.mu.Lock()
			defer record.mu.Unlock()

			cutoff := now.Add(-1 * time.Hour)
			record.timestamps = pruneBefore(record.timestamps, cutoff)

			if len(record.timestamps) == 0 {
				rl.records.Delete(key)
			}

			return true
		})
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.cleanup.Stop()
}

// pruneBefore drops timestamps at or before the cutoff, reusing the backing
// array. A fresh slice is allocated only when most entries were dropped and
// the record was large, so memory is actually reclaimed.
func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	oldCount := len(timestamps)
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) < oldCount/2 && oldCount > 100 {
		return append([]time.Time(nil), kept...)
	}
	return kept
}

// checkLimit reports whether the request is within the limit and records it.
func (rl *RateLimiter) checkLimit(ip string, limit int) bool {
	now := time.Now()

	value, _ := rl.records.LoadOrStore(ip, &requestRecord{
		timestamps: make([]time.Time, 0),
	})
	record := value.(*requestRecord)

	record.mu.Lock()
	defer record.mu.Unlock()

	record.timestamps = pruneBefore(record.timestamps, now.Add(-1*time.Hour))

	if len(record.timestamps) >= limit {
		return false
	}

	record.timestamps = append(record.timestamps, now)
	return true
}

// limitFor maps a request path to its endpoint class and limit.
// Returns 0 for paths that are not rate limited.
func (rl *RateLimiter) limitFor(path string) (int, string) {
	switch {
	case strings.HasPrefix(path, "/api/upload/"):
		return rl.limits.Upload, "upload"
	case path == "/api/requests" || strings.HasPrefix(path, "/api/requests/"):
		return rl.limits.Requests, "requests"
	case strings.HasPrefix(path, "/api/download/"):
		return rl.limits.Download, "download"
	default:
		return 0, ""
	}
}

// RateLimitMiddleware creates a middleware that enforces rate limits
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, limitType := rl.limitFor(r.URL.Path)
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !rl.checkLimit(ip, limit) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"limit_type", limitType,
					"limit", limit,
					"path", r.URL.Path,
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "3600")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Rate limit exceeded. Please try again later.","code":"RATE_LIMIT_EXCEEDED"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
