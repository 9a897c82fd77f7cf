package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/securepass/securepass/internal/repository"
)

// RepositoryCollector collects gauge metrics from the repositories on each
// scrape. Keeping these as a collector avoids a background refresh goroutine;
// values are only computed when Prometheus asks for them.
type RepositoryCollector struct {
	files    repository.FileRepository
	sessions repository.SessionRepository

	totalFiles     *prometheus.Desc
	activeSessions *prometheus.Desc
}

// NewRepositoryCollector creates a new collector over the given repositories.
func NewRepositoryCollector(files repository.FileRepository, sessions repository.SessionRepository) *RepositoryCollector {
	return &RepositoryCollector{
		files:    files,
		sessions: sessions,
		totalFiles: prometheus.NewDesc(
			"securepass_files_total",
			"Number of file records (all statuses, including swept)",
			nil, nil,
		),
		activeSessions: prometheus.NewDesc(
			"securepass_active_upload_sessions",
			"Number of active upload sessions",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *RepositoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalFiles
	ch <- c.activeSessions
}

// Collect fetches current values and sends them to Prometheus
func (c *RepositoryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fileCount, err := c.files.Count(ctx)
	if err != nil {
		slog.Error("failed to count files for metrics", "error", err)
		fileCount = 0
	}

	sessionCount, err := c.sessions.CountActive(ctx)
	if err != nil {
		slog.Error("failed to count active sessions for metrics", "error", err)
		sessionCount = 0
	}

	ch <- prometheus.MustNewConstMetric(c.totalFiles, prometheus.GaugeValue, float64(fileCount))
	ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, float64(sessionCount))
}
