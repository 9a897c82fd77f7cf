package repository

import (
	"context"
	"time"

	"github.com/securepass/securepass/internal/models"
)

// SessionRepository defines database operations on upload sessions.
type SessionRepository interface {
	// Create inserts a new session. The session.ID field is populated on
	// success.
	Create(ctx context.Context, session *models.UploadSession) error

	// GetByKey retrieves a session by its bearer key.
	// Returns ErrNotFound if the key is unknown.
	GetByKey(ctx context.Context, sessionKey string) (*models.UploadSession, error)

	// ExpireIfPast marks an active session expired when its deadline has
	// passed. Returns true when the transition fired. Both the chunk
	// handler and the sweeper funnel through this so a session expires
	// exactly once regardless of who notices first.
	ExpireIfPast(ctx context.Context, id int64, now time.Time) (bool, error)

	// Complete marks an active session completed. Returns (false, nil)
	// when the session was no longer active.
	Complete(ctx context.Context, id int64) (bool, error)

	// DeleteExpired removes sessions whose deadline has passed and that
	// never completed. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// CountActive returns the number of active sessions.
	CountActive(ctx context.Context) (int, error)
}
