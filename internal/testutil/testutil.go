// Package testutil provides shared helpers for tests that need a database,
// configuration, or populated fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/repository/sqlite"
)

// SetupTestDB creates repositories over an in-memory SQLite database.
// The database is closed automatically when the test completes.
func SetupTestDB(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sqlite.Initialize(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	repos, err := sqlite.NewRepositories(db)
	if err != nil {
		db.Close()
		t.Fatalf("failed to build repositories: %v", err)
	}

	t.Cleanup(repos.Cleanup)

	return repos
}

// InsertCompletedFile persists a completed file fixture through the real
// lifecycle: the insert lands as chunks_received and SetAssembled stores the
// blob key and wrapped content key. Inserting a completed row directly would
// skip those columns.
func InsertCompletedFile(t *testing.T, files repository.FileRepository, file *models.File) {
	t.Helper()

	ctx := context.Background()
	insert := *file
	insert.UploadStatus = models.FileStatusChunksReceived
	if err := files.Create(ctx, &insert); err != nil {
		t.Fatalf("failed to insert file fixture: %v", err)
	}

	set, err := files.SetAssembled(ctx, file.ID, file.BlobKey, file.EncryptedKey)
	if err != nil {
		t.Fatalf("failed to assemble file fixture: %v", err)
	}
	if !set {
		t.Fatalf("file fixture %s was not in chunks_received", file.ID)
	}
}

// SetupTestConfig returns a configuration suitable for handler tests.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Port:   "8080",
		DBType: "sqlite",
		DBPath: ":memory:",

		PresignTTLSeconds: 3600,

		MaxFileSize:              100 * 1024 * 1024, // 100MB
		DefaultExpirationHours:   72,
		MaxExpirationHours:       168,
		UploadSessionExpireHours: 24,
		DefaultMaxDownloads:      5,

		SweepIntervalMinutes: 15,

		IPHashSalt: "test-salt",

		RateLimitUpload:   1000,
		RateLimitRequests: 1000,
		RateLimitDownload: 1000,
	}
}
