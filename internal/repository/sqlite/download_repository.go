package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// DownloadRepository implements repository.DownloadRepository for SQLite.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new SQLite download log repository.
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Authorize checks the distinct-requester quota and records the download in
// one transaction. SQLite serializes writers, so the IMMEDIATE transaction
// is enough to make the check-then-insert exact.
func (r *DownloadRepository) Authorize(ctx context.Context, fileID, requestID, ipHash string, maxDownloads int) (bool, error) {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("failed to rollback transaction", "error", err)
		}
	}()

	var distinct int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT request_id) FROM download_logs WHERE file_id = ?`,
		fileID,
	).Scan(&distinct)
	if err != nil {
		return false, fmt.Errorf("failed to count downloads: %w", err)
	}

	if distinct >= maxDownloads {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO download_logs (file_id, request_id, ip_hash) VALUES (?, ?, ?)`,
		fileID, requestID, ipHash,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert download log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit download log: %w", err)
	}
	return true, nil
}

// CountDistinct returns how many distinct request tokens downloaded the file.
func (r *DownloadRepository) CountDistinct(ctx context.Context, fileID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT request_id) FROM download_logs WHERE file_id = ?`,
		fileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}
