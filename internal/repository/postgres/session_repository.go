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

// SessionRepository implements repository.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new upload session.
func (r *SessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO upload_sessions (session_key, file_id, status, chunk_size, total_chunks, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		session.SessionKey,
		session.FileID,
		session.Status,
		session.ChunkSize,
		session.TotalChunks,
		session.ExpiresAt,
	).Scan(&session.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetByKey retrieves a session by its bearer key.
func (r *SessionRepository) GetByKey(ctx context.Context, sessionKey string) (*models.UploadSession, error) {
	session := &models.UploadSession{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_key, file_id, status, chunk_size, total_chunks, created_at, expires_at
		FROM upload_sessions
		WHERE session_key = $1
	`, sessionKey).Scan(
		&session.ID,
		&session.SessionKey,
		&session.FileID,
		&session.Status,
		&session.ChunkSize,
		&session.TotalChunks,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return session, nil
}

// ExpireIfPast marks an active session expired once its deadline passes.
func (r *SessionRepository) ExpireIfPast(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE upload_sessions
		SET status = $1
		WHERE id = $2 AND status = $3 AND expires_at < $4
	`, models.SessionStatusExpired, id, models.SessionStatusActive, now)
	if err != nil {
		return false, fmt.Errorf("failed to expire session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Complete marks an active session completed.
func (r *SessionRepository) Complete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE upload_sessions SET status = $1 WHERE id = $2 AND status = $3`,
		models.SessionStatusCompleted, id, models.SessionStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired removes sessions whose deadline passed without completion.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM upload_sessions
		WHERE expires_at < $1 AND status != $2
	`, now, models.SessionStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountActive returns the number of active sessions.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM upload_sessions WHERE status = $1`,
		models.SessionStatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}
