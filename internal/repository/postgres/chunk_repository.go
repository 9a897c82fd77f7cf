package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// ChunkRepository implements repository.ChunkRepository for PostgreSQL.
type ChunkRepository struct {
	pool *Pool
}

// NewChunkRepository creates a new PostgreSQL chunk repository.
func NewChunkRepository(pool *Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// CreateBatch inserts the full chunk plan for a file in one transaction.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*models.FileChunk) error {
	if len(chunks) == 0 {
		return repository.ErrInvalidInput
	}

	tx, err := r.pool.BeginTx(ctx, TxOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunks {
		err := tx.QueryRow(ctx, `
			INSERT INTO file_chunks (file_id, chunk_index, size, blob_key)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, chunk.FileID, chunk.ChunkIndex, chunk.Size, chunk.BlobKey).Scan(&chunk.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// GetByFileAndIndex retrieves one chunk record.
func (r *ChunkRepository) GetByFileAndIndex(ctx context.Context, fileID string, index int) (*models.FileChunk, error) {
	chunk := &models.FileChunk{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, file_id, chunk_index, size, blob_key, created_at, uploaded_at
		FROM file_chunks
		WHERE file_id = $1 AND chunk_index = $2
	`, fileID, index).Scan(
		&chunk.ID,
		&chunk.FileID,
		&chunk.ChunkIndex,
		&chunk.Size,
		&chunk.BlobKey,
		&chunk.CreatedAt,
		&chunk.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}
	return chunk, nil
}

// ConfirmUpload stamps uploaded_at on a chunk that has none.
func (r *ChunkRepository) ConfirmUpload(ctx context.Context, chunkID int64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE file_chunks SET uploaded_at = $1 WHERE id = $2 AND uploaded_at IS NULL`,
		at, chunkID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm chunk: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByFile returns all chunk records in ascending index order.
func (r *ChunkRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileChunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, file_id, chunk_index, size, blob_key, created_at, uploaded_at
		FROM file_chunks
		WHERE file_id = $1
		ORDER BY chunk_index
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.FileChunk
	for rows.Next() {
		chunk := &models.FileChunk{}
		if err := rows.Scan(
			&chunk.ID, &chunk.FileID, &chunk.ChunkIndex, &chunk.Size,
			&chunk.BlobKey, &chunk.CreatedAt, &chunk.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

// MissingIndexes returns the unconfirmed chunk indexes, ascending.
func (r *ChunkRepository) MissingIndexes(ctx context.Context, fileID string) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT chunk_index FROM file_chunks
		WHERE file_id = $1 AND uploaded_at IS NULL
		ORDER BY chunk_index
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing chunks: %w", err)
	}
	defer rows.Close()

	var missing []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan chunk index: %w", err)
		}
		missing = append(missing, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missing chunks: %w", err)
	}

	return missing, nil
}
