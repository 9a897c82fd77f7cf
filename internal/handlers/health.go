package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/storage"
)

// healthCheckTimeout bounds the dependency probes so a wedged backend cannot
// hang the health endpoint.
const healthCheckTimeout = 5 * time.Second

// HealthHandler handles GET /health.
// Probes the database and blob store and reports counts useful for probes
// and dashboards. Degrades to 503 only when the database is down; a blob
// store outage reports degraded but stays 200 so orchestrators don't restart
// the API over a storage blip.
func HealthHandler(repos *repository.Repositories, blobs storage.BlobStore, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			setNoStoreHeaders(w)
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := models.HealthResponse{
			Status:        "healthy",
			Database:      "ok",
			BlobStore:     "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		}
		httpStatus := http.StatusOK

		if err := repos.Health.Ping(ctx); err != nil {
			slog.Error("health check: database unreachable", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			httpStatus = http.StatusServiceUnavailable
		} else {
			if count, err := repos.Files.Count(ctx); err == nil {
				resp.TotalFiles = count
			}
			if count, err := repos.Sessions.CountActive(ctx); err == nil {
				resp.ActiveSessions = count
			}
		}

		if err := blobs.HealthCheck(ctx); err != nil {
			slog.Error("health check: blob store unreachable", "error", err)
			resp.BlobStore = "unreachable"
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}

		switch resp.Status {
		case "healthy":
			metrics.HealthStatus.Set(2)
		case "degraded":
			metrics.HealthStatus.Set(1)
		default:
			metrics.HealthStatus.Set(0)
		}

		setNoStoreHeaders(w)
		sendJSON(w, httpStatus, resp)
	}
}
