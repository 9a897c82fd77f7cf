package postgres

import (
	"context"
	"fmt"
)

// DownloadRepository implements repository.DownloadRepository for PostgreSQL.
type DownloadRepository struct {
	pool *Pool
}

// NewDownloadRepository creates a new PostgreSQL download log repository.
func NewDownloadRepository(pool *Pool) *DownloadRepository {
	return &DownloadRepository{pool: pool}
}

// Authorize checks the distinct-requester quota and records the download in
// one transaction. The file row is locked FOR UPDATE so concurrent downloads
// of the same file serialize on the count-then-insert and the ceiling holds
// exactly. Serialization failures under concurrency are retried.
func (r *DownloadRepository) Authorize(ctx context.Context, fileID, requestID, ipHash string, maxDownloads int) (bool, error) {
	allowed := false
	err := withRetryNoReturn(ctx, 3, func() error {
		tx, err := r.pool.BeginTx(ctx, TxOptions())
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var lockedID string
		if err := tx.QueryRow(ctx,
			`SELECT id FROM files WHERE id = $1 FOR UPDATE`, fileID,
		).Scan(&lockedID); err != nil {
			return fmt.Errorf("failed to lock file row: %w", err)
		}

		var distinct int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(DISTINCT request_id) FROM download_logs WHERE file_id = $1`, fileID,
		).Scan(&distinct); err != nil {
			return fmt.Errorf("failed to count downloads: %w", err)
		}

		if distinct >= maxDownloads {
			allowed = false
			return tx.Commit(ctx)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO download_logs (file_id, request_id, ip_hash) VALUES ($1, $2, $3)`,
			fileID, requestID, ipHash,
		); err != nil {
			return fmt.Errorf("failed to insert download log: %w", err)
		}

		allowed = true
		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// CountDistinct returns how many distinct request tokens downloaded the file.
func (r *DownloadRepository) CountDistinct(ctx context.Context, fileID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT request_id) FROM download_logs WHERE file_id = $1`, fileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}
