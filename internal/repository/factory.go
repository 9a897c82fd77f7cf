package repository

// Repositories holds all repository implementations.
// This struct provides a single point of access to all data access layers.
type Repositories struct {
	Users     UserRepository
	Files     FileRepository
	Chunks    ChunkRepository
	Sessions  SessionRepository
	Requests  RequestRepository
	Downloads DownloadRepository
	Health    HealthRepository

	// DatabaseType identifies the active backend, DatabaseTypeSQLite or
	// DatabaseTypePostgreSQL.
	DatabaseType string

	// Cleanup closes the underlying connection pool.
	Cleanup func()
}
