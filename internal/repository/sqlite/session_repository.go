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

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new upload session.
func (r *SessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (session_key, file_id, status, chunk_size, total_chunks, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		session.SessionKey,
		session.FileID,
		session.Status,
		session.ChunkSize,
		session.TotalChunks,
		formatTime(session.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	session.ID = id
	return nil
}

// GetByKey retrieves a session by its bearer key.
func (r *SessionRepository) GetByKey(ctx context.Context, sessionKey string) (*models.UploadSession, error) {
	query := `
		SELECT id, session_key, file_id, status, chunk_size, total_chunks, created_at, expires_at
		FROM upload_sessions
		WHERE session_key = ?
	`

	session := &models.UploadSession{}
	var createdAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(
		&session.ID,
		&session.SessionKey,
		&session.FileID,
		&session.Status,
		&session.ChunkSize,
		&session.TotalChunks,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return session, nil
}

// ExpireIfPast marks an active session expired once its deadline passes.
func (r *SessionRepository) ExpireIfPast(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE upload_sessions
		SET status = ?
		WHERE id = ? AND status = ? AND expires_at < ?
	`, models.SessionStatusExpired, id, models.SessionStatusActive, formatTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to expire session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Complete marks an active session completed.
func (r *SessionRepository) Complete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE upload_sessions SET status = ? WHERE id = ? AND status = ?`,
		models.SessionStatusCompleted, id, models.SessionStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteExpired removes sessions whose deadline passed without completion.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM upload_sessions
		WHERE expires_at < ? AND status != ?
	`, formatTime(now), models.SessionStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// CountActive returns the number of active sessions.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM upload_sessions WHERE status = ?`,
		models.SessionStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}
