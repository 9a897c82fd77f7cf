package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// UpsertBySubject creates the account on first sight or loads the existing
// one, in a single statement so concurrent first sights cannot race.
func (r *UserRepository) UpsertBySubject(ctx context.Context, user *models.User) error {
	if user.Subject == "" {
		return repository.ErrInvalidInput
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, subject, email, plan)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, subject, email, plan, created_at
	`, user.ID, user.Subject, user.Email, user.Plan).Scan(
		&user.ID, &user.Subject, &user.Email, &user.Plan, &user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject, email, plan, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Subject, &user.Email, &user.Plan, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// HealthRepository implements repository.HealthRepository for PostgreSQL.
type HealthRepository struct {
	pool *Pool
}

// NewHealthRepository creates a new PostgreSQL health repository.
func NewHealthRepository(pool *Pool) *HealthRepository {
	return &HealthRepository{pool: pool}
}

// Ping verifies the database connection is usable.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
