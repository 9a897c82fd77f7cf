package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// FileRepository implements repository.FileRepository for SQLite.
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new SQLite file repository.
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `
	id, share_id, filename, size, mime_type, encrypted_key, blob_key,
	upload_status, chunk_count, uploaded_chunks, created_at, expires_at,
	max_downloads, user_id, blocks_requests, blocks_downloads
`

func scanFile(row *sql.Row) (*models.File, error) {
	file := &models.File{}
	var createdAt, expiresAt string

	err := row.Scan(
		&file.ID,
		&file.ShareID,
		&file.Filename,
		&file.Size,
		&file.MimeType,
		&file.EncryptedKey,
		&file.BlobKey,
		&file.UploadStatus,
		&file.ChunkCount,
		&file.UploadedChunks,
		&createdAt,
		&expiresAt,
		&file.MaxDownloads,
		&file.UserID,
		&file.BlocksRequests,
		&file.BlocksDownloads,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}

	if file.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if file.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return file, nil
}

// Create inserts a new file record into the database.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (
			id, share_id, filename, size, mime_type, upload_status,
			chunk_count, expires_at, max_downloads, user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		file.ID,
		file.ShareID,
		file.Filename,
		file.Size,
		file.MimeType,
		file.UploadStatus,
		file.ChunkCount,
		formatTime(file.ExpiresAt),
		file.MaxDownloads,
		file.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

// GetByID retrieves a file by its ID.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ?`
	return scanFile(r.db.QueryRowContext(ctx, query, id))
}

// GetByShareID retrieves a file by its public share token.
func (r *FileRepository) GetByShareID(ctx context.Context, shareID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE share_id = ?`
	return scanFile(r.db.QueryRowContext(ctx, query, shareID))
}

// IncrementUploadedChunks atomically bumps the confirmed-chunk counter.
func (r *FileRepository) IncrementUploadedChunks(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE files
		SET uploaded_chunks = uploaded_chunks + 1
		WHERE id = ?
		RETURNING uploaded_chunks
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment uploaded chunks: %w", err)
	}
	return count, nil
}

// TransitionStatus moves the file between upload statuses with a
// check-and-set; rows affected discriminates lost races.
func (r *FileRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE files SET upload_status = ? WHERE id = ? AND upload_status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition file status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// SetAssembled records the assembled blob and wrapped key and completes the file.
func (r *FileRepository) SetAssembled(ctx context.Context, id, blobKey, encryptedKey string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE files
		SET blob_key = ?, encrypted_key = ?, upload_status = ?
		WHERE id = ? AND upload_status = ?
	`, blobKey, encryptedKey, models.FileStatusCompleted, id, models.FileStatusChunksReceived)
	if err != nil {
		return false, fmt.Errorf("failed to mark file assembled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateBlocks raises the share-off gates; false inputs are no-ops.
func (r *FileRepository) UpdateBlocks(ctx context.Context, id string, blocksRequests, blocksDownloads bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE files
		SET blocks_requests = blocks_requests OR ?,
		    blocks_downloads = blocks_downloads OR ?
		WHERE id = ?
	`, blocksRequests, blocksDownloads, id)
	if err != nil {
		return fmt.Errorf("failed to update file gates: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByUser returns the owner's files, newest first, with aggregates.
func (r *FileRepository) ListByUser(ctx context.Context, userID string, opts repository.PaginationOptions) ([]models.RecentFileItem, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	query := `
		SELECT
			f.id, f.share_id, f.filename, f.size, f.upload_status,
			f.created_at, f.expires_at,
			(SELECT COUNT(*) FROM access_requests ar WHERE ar.file_id = f.id),
			(SELECT COUNT(DISTINCT dl.request_id) FROM download_logs dl WHERE dl.file_id = f.id)
		FROM files f
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	items := make([]models.RecentFileItem, 0, opts.Limit)
	for rows.Next() {
		var item models.RecentFileItem
		var createdAt, expiresAt string
		if err := rows.Scan(
			&item.FileID, &item.ShareID, &item.Filename, &item.Size,
			&item.UploadStatus, &createdAt, &expiresAt,
			&item.RequestCount, &item.DownloadCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan file row: %w", err)
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, err
		}
		if item.ExpiresAt, err = parseTime(expiresAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating files: %w", err)
	}

	return items, total, nil
}

// ListExpired returns expired files the sweeper has not finished with.
func (r *FileRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE expires_at < ? AND (blocks_requests = 0 OR blocks_downloads = 0)
		ORDER BY expires_at
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file := &models.File{}
		var createdAt, expiresAt string
		if err := rows.Scan(
			&file.ID, &file.ShareID, &file.Filename, &file.Size,
			&file.MimeType, &file.EncryptedKey, &file.BlobKey,
			&file.UploadStatus, &file.ChunkCount, &file.UploadedChunks,
			&createdAt, &expiresAt, &file.MaxDownloads, &file.UserID,
			&file.BlocksRequests, &file.BlocksDownloads,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expired file: %w", err)
		}
		if file.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if file.ExpiresAt, err = parseTime(expiresAt); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired files: %w", err)
	}

	return files, nil
}

// MarkSwept closes both gates on an expired file.
func (r *FileRepository) MarkSwept(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE files SET blocks_requests = 1, blocks_downloads = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file swept: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Count returns the number of file records.
func (r *FileRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}
