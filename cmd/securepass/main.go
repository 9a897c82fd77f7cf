package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/securepass/securepass/internal/auth"
	"github.com/securepass/securepass/internal/billing"
	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/handlers"
	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/middleware"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/repository/postgres"
	"github.com/securepass/securepass/internal/repository/sqlite"
	"github.com/securepass/securepass/internal/storage"
	storagemock "github.com/securepass/securepass/internal/storage/mock"
	storages3 "github.com/securepass/securepass/internal/storage/s3"
	"github.com/securepass/securepass/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting securepass",
		"port", cfg.Port,
		"db_type", cfg.DBType,
		"max_file_size", cfg.MaxFileSize,
		"default_expiration_hours", cfg.DefaultExpirationHours,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := buildRepositories(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repos.Cleanup()

	slog.Info("database initialized", "backend", repos.DatabaseType)

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	limits := billing.NewService(cfg)
	startTime := time.Now()

	prometheus.MustRegister(metrics.NewRepositoryCollector(repos.Files, repos.Sessions))

	requireAuth := middleware.RequireAuth(verifier, repos.Users)
	authed := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}

	mux := http.NewServeMux()

	// Owner endpoints (bearer token required)
	mux.Handle("/api/upload/initiate", authed(handlers.UploadInitiateHandler(repos, blobs, cfg, limits)))
	mux.Handle("/api/upload/complete", authed(handlers.UploadCompleteHandler(repos, blobs)))
	mux.Handle("/api/requests/{requestID}/approve", authed(handlers.ApproveRequestHandler(repos)))
	mux.Handle("/api/requests/{requestID}/reject", authed(handlers.RejectRequestHandler(repos)))
	mux.Handle("/api/files/recent", authed(handlers.RecentFilesHandler(repos)))
	mux.Handle("/api/files/{shareID}/info", authed(handlers.FileInfoHandler(repos)))
	mux.Handle("/api/files/{shareID}/requests", authed(handlers.FileRequestsHandler(repos)))
	mux.Handle("/api/files/{shareID}", authed(handlers.UpdateFileHandler(repos)))

	// Session-key and capability-token endpoints (no bearer token)
	mux.HandleFunc("/api/upload/chunk", handlers.UploadChunkHandler(repos, blobs))
	mux.HandleFunc("/api/upload/status/{sessionKey}", handlers.UploadStatusHandler(repos))
	mux.HandleFunc("/api/requests", handlers.CreateRequestHandler(repos, cfg))
	mux.HandleFunc("/api/requests/{requestID}", handlers.RequestStatusHandler(repos))
	mux.HandleFunc("/api/download/{shareID}", handlers.DownloadHandler(repos, blobs, cfg))
	mux.HandleFunc("/api/download/{shareID}/key", handlers.DecryptKeyHandler(repos))

	mux.HandleFunc("/health", handlers.HealthHandler(repos, blobs, startTime))
	mux.Handle("/metrics", promhttp.Handler())

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimits{
		Upload:   cfg.RateLimitUpload,
		Requests: cfg.RateLimitRequests,
		Download: cfg.RateLimitDownload,
	})
	defer rateLimiter.Stop()

	// Middleware order: Recovery -> Logging -> Security -> Metrics -> RateLimit -> handlers
	handler := middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			middleware.SecurityHeadersMiddleware(
				metrics.Middleware(
					middleware.RateLimitMiddleware(rateLimiter)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
		// Downloads stream large ciphertext, so the write timeout is generous
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	sw := sweeper.New(repos, blobs)
	go sw.Start(ctx, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		cancel()

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}

// buildRepositories selects the persistence backend from configuration.
func buildRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	switch cfg.DBType {
	case repository.DatabaseTypePostgreSQL:
		return postgres.NewRepositories(ctx, cfg)
	default:
		db, err := sqlite.Initialize(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRepositories(db)
	}
}

// buildBlobStore connects to the configured S3 bucket, or falls back to the
// in-memory store for local development when no bucket is configured.
func buildBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if cfg.S3Bucket == "" {
		slog.Warn("no S3 bucket configured, using in-memory blob store (data is lost on restart)")
		return storagemock.New(), nil
	}

	return storages3.New(ctx, storages3.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		PathStyle:       cfg.S3UsePathStyle,
	})
}

// buildVerifier connects to the configured identity provider, or falls back
// to a fixed local token when none is configured.
func buildVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.OIDCIssuerURL == "" {
		slog.Warn("no identity provider configured, using local development token")
		v := auth.NewStaticVerifier()
		v.AddToken("local-dev-token", auth.Identity{
			Subject: "local-dev",
			Email:   "dev@localhost",
		})
		return v, nil
	}

	return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCAudience)
}
