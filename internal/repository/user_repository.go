package repository

import (
	"context"

	"github.com/securepass/securepass/internal/models"
)

// UserRepository defines database operations on provisioned accounts.
type UserRepository interface {
	// UpsertBySubject creates the account for an IdP subject on first
	// sight, or loads the existing one. The passed user is populated with
	// the stored row either way.
	UpsertBySubject(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if the user doesn't exist.
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// HealthRepository exposes liveness checks on the active backend.
type HealthRepository interface {
	// Ping verifies the database connection is usable.
	Ping(ctx context.Context) error
}
