package repository

import (
	"context"
	"time"

	"github.com/securepass/securepass/internal/models"
)

// FileRepository defines the interface for file-related database operations.
// All methods accept a context for cancellation and timeout support.
type FileRepository interface {
	// Create inserts a new file record. The caller supplies the ID.
	Create(ctx context.Context, file *models.File) error

	// GetByID retrieves a file by its ID.
	// Returns ErrNotFound if the file doesn't exist.
	GetByID(ctx context.Context, id string) (*models.File, error)

	// GetByShareID retrieves a file by its public share token.
	// Returns ErrNotFound if no file carries the token.
	GetByShareID(ctx context.Context, shareID string) (*models.File, error)

	// IncrementUploadedChunks atomically bumps the confirmed-chunk counter
	// and returns the new value.
	IncrementUploadedChunks(ctx context.Context, id string) (int, error)

	// TransitionStatus moves the file from one upload status to another.
	// Returns (false, nil) when the file was not in the expected status,
	// which is how concurrent completion races are detected.
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)

	// SetAssembled records the assembled blob key and client-wrapped content
	// key and marks the file completed. Only applies while the file is in
	// the chunks_received status; returns (false, nil) otherwise.
	SetAssembled(ctx context.Context, id, blobKey, encryptedKey string) (bool, error)

	// UpdateBlocks raises the share-off gates. The gates are monotonic:
	// a true value is applied, a false value never clears an earlier true.
	UpdateBlocks(ctx context.Context, id string, blocksRequests, blocksDownloads bool) error

	// ListByUser returns the owner's files, newest first, with request and
	// download aggregates. Returns the page and the total count.
	ListByUser(ctx context.Context, userID string, opts PaginationOptions) ([]models.RecentFileItem, int, error)

	// ListExpired returns up to limit files whose lifetime has passed and
	// which still have at least one gate open, i.e. files the sweeper has
	// not finished with.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error)

	// MarkSwept closes both gates on an expired file. The record itself is
	// retained so share and request tokens keep resolving to 410.
	MarkSwept(ctx context.Context, id string) error

	// Count returns the number of file records.
	Count(ctx context.Context) (int, error)
}
