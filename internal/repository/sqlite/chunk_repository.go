package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// ChunkRepository implements repository.ChunkRepository for SQLite.
type ChunkRepository struct {
	db *sql.DB
}

// NewChunkRepository creates a new SQLite chunk repository.
func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch inserts the full chunk plan for a file in one transaction.
func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []*models.FileChunk) error {
	if len(chunks) == 0 {
		return repository.ErrInvalidInput
	}

	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_chunks (file_id, chunk_index, size, blob_key)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		result, err := stmt.ExecContext(ctx, chunk.FileID, chunk.ChunkIndex, chunk.Size, chunk.BlobKey)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
		if chunk.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get chunk id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// GetByFileAndIndex retrieves one chunk record.
func (r *ChunkRepository) GetByFileAndIndex(ctx context.Context, fileID string, index int) (*models.FileChunk, error) {
	query := `
		SELECT id, file_id, chunk_index, size, blob_key, created_at, uploaded_at
		FROM file_chunks
		WHERE file_id = ? AND chunk_index = ?
	`

	chunk := &models.FileChunk{}
	var createdAt string
	var uploadedAt sql.NullString

	err := r.db.QueryRowContext(ctx, query, fileID, index).Scan(
		&chunk.ID,
		&chunk.FileID,
		&chunk.ChunkIndex,
		&chunk.Size,
		&chunk.BlobKey,
		&createdAt,
		&uploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	if chunk.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if chunk.UploadedAt, err = parseNullTime(uploadedAt); err != nil {
		return nil, err
	}
	return chunk, nil
}

// ConfirmUpload stamps uploaded_at on a chunk that has none.
func (r *ChunkRepository) ConfirmUpload(ctx context.Context, chunkID int64, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE file_chunks SET uploaded_at = ? WHERE id = ? AND uploaded_at IS NULL`,
		formatTime(at), chunkID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to confirm chunk: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListByFile returns all chunk records in ascending index order.
func (r *ChunkRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileChunk, error) {
	query := `
		SELECT id, file_id, chunk_index, size, blob_key, created_at, uploaded_at
		FROM file_chunks
		WHERE file_id = ?
		ORDER BY chunk_index
	`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.FileChunk
	for rows.Next() {
		chunk := &models.FileChunk{}
		var createdAt string
		var uploadedAt sql.NullString
		if err := rows.Scan(
			&chunk.ID, &chunk.FileID, &chunk.ChunkIndex, &chunk.Size,
			&chunk.BlobKey, &createdAt, &uploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if chunk.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if chunk.UploadedAt, err = parseNullTime(uploadedAt); err != nil {
			return nil, err
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
	rows, err := r.db.QueryContext(ctx, `
		SELECT chunk_index FROM file_chunks
		WHERE file_id = ? AND uploaded_at IS NULL
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
