package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality
// explosion. Dynamic segments (share IDs, request IDs) become placeholders.
func normalizePath(path string) string {
	switch {
	case path == "/health":
		return "/health"
	case path == "/metrics":
		return "/metrics"

	case path == "/api/upload/initiate":
		return "/api/upload/initiate"
	case path == "/api/upload/chunk":
		return "/api/upload/chunk"
	case path == "/api/upload/complete":
		return "/api/upload/complete"
	case strings.HasPrefix(path, "/api/upload/status/"):
		return "/api/upload/status/:id"

	case path == "/api/requests":
		return "/api/requests"
	case strings.HasPrefix(path, "/api/requests/"):
		switch {
		case strings.HasSuffix(path, "/approve"):
			return "/api/requests/:id/approve"
		case strings.HasSuffix(path, "/reject"):
			return "/api/requests/:id/reject"
		default:
			return "/api/requests/:id"
		}

	case path == "/api/files/recent":
		return "/api/files/recent"
	case strings.HasPrefix(path, "/api/files/"):
		switch {
		case strings.HasSuffix(path, "/info"):
			return "/api/files/:id/info"
		case strings.HasSuffix(path, "/requests"):
			return "/api/files/:id/requests"
		default:
			return "/api/files/:id"
		}

	case strings.HasPrefix(path, "/api/download/"):
		if strings.HasSuffix(path, "/key") {
			return "/api/download/:id/key"
		}
		return "/api/download/:id"

	default:
		return "/other"
	}
}
