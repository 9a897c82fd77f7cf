package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertBySubject creates the account on first sight or loads the existing
// one. Concurrent first sights race on the subject unique index; the loser
// falls back to reading the winner's row.
func (r *UserRepository) UpsertBySubject(ctx context.Context, user *models.User) error {
	if user.Subject == "" {
		return repository.ErrInvalidInput
	}

	existing, err := r.getBySubject(ctx, user.Subject)
	if err == nil {
		*user = *existing
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, subject, email, plan) VALUES (?, ?, ?, ?)`,
		user.ID, user.Subject, user.Email, user.Plan,
	)
	if err != nil {
		if isUniqueViolation(err) {
			existing, err := r.getBySubject(ctx, user.Subject)
			if err != nil {
				return err
			}
			*user = *existing
			return nil
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	created, err := r.getBySubject(ctx, user.Subject)
	if err != nil {
		return err
	}
	*user = *created
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, subject, email, plan, created_at FROM users WHERE id = ?`, id,
	))
}

func (r *UserRepository) getBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, subject, email, plan, created_at FROM users WHERE subject = ?`, subject,
	))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var createdAt string

	err := row.Scan(&user.ID, &user.Subject, &user.Email, &user.Plan, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return user, nil
}

// HealthRepository implements repository.HealthRepository for SQLite.
type HealthRepository struct {
	db *sql.DB
}

// NewHealthRepository creates a new SQLite health repository.
func NewHealthRepository(db *sql.DB) *HealthRepository {
	return &HealthRepository{db: db}
}

// Ping verifies the database connection is usable.
func (r *HealthRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
