package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/repository"
)

// NewRepositories creates all PostgreSQL repository implementations.
// This factory creates a connection pool, runs migrations, and builds all
// repository instances.
//
// Returns the repositories struct with DatabaseType set to "postgres" and
// a Cleanup function that closes the pool.
func NewRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, error) {
	connStr := buildConnectionString(cfg)

	pool, err := NewPool(ctx, connStr, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
	}

	repos, err := NewRepositoriesWithPool(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	repos.Cleanup = pool.Close
	return repos, nil
}

// NewRepositoriesWithPool creates all PostgreSQL repository implementations
// using an existing pool. The caller is responsible for closing the pool;
// Cleanup will be nil.
func NewRepositoriesWithPool(pool *Pool) (*repository.Repositories, error) {
	if pool == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Users:        NewUserRepository(pool),
		Files:        NewFileRepository(pool),
		Chunks:       NewChunkRepository(pool),
		Sessions:     NewSessionRepository(pool),
		Requests:     NewRequestRepository(pool),
		Downloads:    NewDownloadRepository(pool),
		Health:       NewHealthRepository(pool),
		DatabaseType: repository.DatabaseTypePostgreSQL,
	}, nil
}

// buildConnectionString constructs a PostgreSQL connection string from config.
// Credentials are URL-encoded to handle special characters safely.
func buildConnectionString(cfg *config.Config) string {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.PathEscape(cfg.PostgresUser),
		url.PathEscape(cfg.PostgresPassword),
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)

	sslMode := cfg.PostgresSSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	connStr += fmt.Sprintf("?sslmode=%s", sslMode)

	return connStr
}
