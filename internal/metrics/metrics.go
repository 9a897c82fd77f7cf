package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// UploadsInitiatedTotal counts upload sessions initiated
	UploadsInitiatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securepass_uploads_initiated_total",
			Help: "Total number of upload sessions initiated",
		},
	)

	// UploadsCompletedTotal counts uploads by terminal status (completed, failed)
	UploadsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_uploads_completed_total",
			Help: "Total number of uploads reaching a terminal status",
		},
		[]string{"status"},
	)

	// ChunksConfirmedTotal counts individual chunk confirmations
	ChunksConfirmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securepass_chunks_confirmed_total",
			Help: "Total number of file chunks confirmed",
		},
	)

	// AccessRequestsTotal counts access requests by outcome (created, duplicate)
	AccessRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_access_requests_total",
			Help: "Total number of access requests received",
		},
		[]string{"outcome"},
	)

	// RequestDecisionsTotal counts owner decisions by status (approved, rejected)
	RequestDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_request_decisions_total",
			Help: "Total number of access request decisions",
		},
		[]string{"status"},
	)

	// DownloadsTotal counts download attempts by status (success, denied, quota_exceeded)
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_downloads_total",
			Help: "Total number of file download attempts",
		},
		[]string{"status"},
	)

	// SweepsTotal counts sweeper runs by status (success, failure)
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_sweeps_total",
			Help: "Total number of expiry sweeper runs",
		},
		[]string{"status"},
	)

	// SweptFilesTotal counts files processed by the expiry sweeper
	SweptFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securepass_swept_files_total",
			Help: "Total number of expired files swept",
		},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securepass_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "securepass_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// UploadSizeBytes tracks distribution of uploaded file sizes
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "securepass_upload_size_bytes",
			Help: "Distribution of uploaded file sizes in bytes",
			Buckets: []float64{
				1024,         // 1 KB
				102400,       // 100 KB
				1048576,      // 1 MB
				10485760,     // 10 MB
				104857600,    // 100 MB
				1073741824,   // 1 GB
				10737418240,  // 10 GB
			},
		},
	)

	// AssemblyDuration tracks how long chunk assembly takes
	AssemblyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "securepass_assembly_duration_seconds",
			Help:    "Chunk assembly duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "securepass_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)
)
