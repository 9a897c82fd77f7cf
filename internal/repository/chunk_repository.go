package repository

import (
	"context"
	"time"

	"github.com/securepass/securepass/internal/models"
)

// ChunkRepository defines database operations on per-chunk upload records.
type ChunkRepository interface {
	// CreateBatch inserts the full chunk plan for a new file in one
	// transaction, one row per index with its blob key and expected size.
	CreateBatch(ctx context.Context, chunks []*models.FileChunk) error

	// GetByFileAndIndex retrieves one chunk record.
	// Returns ErrNotFound for an index outside the plan.
	GetByFileAndIndex(ctx context.Context, fileID string, index int) (*models.FileChunk, error)

	// ConfirmUpload stamps uploaded_at on a chunk that has none. Returns
	// (false, nil) when the chunk was already confirmed, so replays and
	// concurrent duplicates never double-count.
	ConfirmUpload(ctx context.Context, chunkID int64, at time.Time) (bool, error)

	// ListByFile returns all chunk records for a file in ascending index
	// order.
	ListByFile(ctx context.Context, fileID string) ([]*models.FileChunk, error)

	// MissingIndexes returns the indexes that have not been confirmed yet,
	// ascending.
	MissingIndexes(ctx context.Context, fileID string) ([]int, error)
}
