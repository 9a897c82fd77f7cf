package sqlite

import (
	"database/sql"

	"github.com/securepass/securepass/internal/repository"
)

// NewRepositories creates all SQLite repository implementations.
// The db parameter must be a valid, open database connection.
//
// Returns the repositories struct with DatabaseType set to "sqlite" and
// a Cleanup function that closes the database connection.
func NewRepositories(db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Users:        NewUserRepository(db),
		Files:        NewFileRepository(db),
		Chunks:       NewChunkRepository(db),
		Sessions:     NewSessionRepository(db),
		Requests:     NewRequestRepository(db),
		Downloads:    NewDownloadRepository(db),
		Health:       NewHealthRepository(db),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup: func() {
			db.Close()
		},
	}, nil
}
