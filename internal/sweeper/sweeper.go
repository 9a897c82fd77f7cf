// Package sweeper removes expired content in the background. File records
// are kept with their gates closed so expired tokens resolve to a clean
// "gone" answer; only blobs and dead upload sessions are actually deleted.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/storage"
)

// sweepBatchSize caps how many expired files one pass will touch.
const sweepBatchSize = 100

// Result summarizes one sweep pass.
type Result struct {
	FilesSwept      int
	SessionsDeleted int
	Errors          int
}

// Sweeper deletes expired blobs and upload sessions on an interval.
type Sweeper struct {
	repos *repository.Repositories
	blobs storage.BlobStore
}

// New creates a Sweeper over the given repositories and blob store.
func New(repos *repository.Repositories, blobs storage.BlobStore) *Sweeper {
	return &Sweeper{repos: repos, blobs: blobs}
}

// Start runs sweeps on the given interval until the context is canceled.
// One pass runs immediately on start.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("expiry sweeper started", "interval", interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper shutting down")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	start := time.Now()
	result, err := s.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		metrics.SweepsTotal.WithLabelValues("failure").Inc()
		slog.Error("sweep failed", "error", err, "duration", duration)
		return
	}

	metrics.SweepsTotal.WithLabelValues("success").Inc()
	metrics.SweptFilesTotal.Add(float64(result.FilesSwept))

	logFn := slog.Debug
	if result.FilesSwept > 0 || result.SessionsDeleted > 0 || result.Errors > 0 {
		logFn = slog.Info
	}
	logFn("sweep completed",
		"files_swept", result.FilesSwept,
		"sessions_deleted", result.SessionsDeleted,
		"errors", result.Errors,
		"duration", duration,
	)
}

// Run performs a single sweep pass and reports what it did.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result
	now := time.Now()

	expired, err := s.repos.Files.ListExpired(ctx, now, sweepBatchSize)
	if err != nil {
		return result, err
	}

	for _, file := range expired {
		blobErrs, err := s.sweepFile(ctx, file.ID)
		result.Errors += blobErrs
		if err != nil {
			slog.Error("failed to sweep file", "error", err, "file_id", file.ID)
			result.Errors++
			continue
		}
		result.FilesSwept++
	}

	deleted, err := s.repos.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		slog.Error("failed to delete expired sessions", "error", err)
		result.Errors++
	} else {
		result.SessionsDeleted = deleted
	}

	return result, nil
}

// sweepFile deletes the file's blobs and closes its gates. Blob deletion is
// best-effort per object: a failed delete is counted and logged but never
// stops the sweep, and the gates still close. A missing blob is not an
// error, so a crashed earlier pass just resumes.
func (s *Sweeper) sweepFile(ctx context.Context, fileID string) (int, error) {
	file, err := s.repos.Files.GetByID(ctx, fileID)
	if err != nil {
		return 0, err
	}

	blobErrs := 0
	if file.BlobKey != "" {
		if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
			slog.Warn("failed to delete assembled blob", "error", err, "blob_key", file.BlobKey)
			blobErrs++
		}
	}

	chunks, err := s.repos.Chunks.ListByFile(ctx, fileID)
	if err != nil {
		return blobErrs, err
	}
	for _, chunk := range chunks {
		if err := s.blobs.Delete(ctx, chunk.BlobKey); err != nil {
			slog.Warn("failed to delete chunk blob", "error", err, "blob_key", chunk.BlobKey)
			blobErrs++
		}
	}

	return blobErrs, s.repos.Files.MarkSwept(ctx, fileID)
}
