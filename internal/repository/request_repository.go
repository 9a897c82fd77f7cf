package repository

import (
	"context"
	"time"

	"github.com/securepass/securepass/internal/models"
)

// RequestRepository defines database operations on access requests.
type RequestRepository interface {
	// Create inserts a new pending request. Returns ErrDuplicateKey when a
	// pending request for the same file and requester hash already exists;
	// a partial unique index backs this so concurrent duplicates collapse
	// to one row.
	Create(ctx context.Context, request *models.AccessRequest) error

	// GetByRequestID retrieves a request by its capability token.
	// Returns ErrNotFound if the token is unknown.
	GetByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error)

	// GetPendingByFileAndIP retrieves the pending request a requester hash
	// already holds for a file, if any.
	// Returns ErrNotFound when there is none.
	GetPendingByFileAndIP(ctx context.Context, fileID, ipHash string) (*models.AccessRequest, error)

	// Decide moves a pending request to approved or rejected, stamping the
	// matching decision time. Returns (false, nil) when the request was
	// not pending, so a second decision never overwrites the first.
	Decide(ctx context.Context, requestID, status string, at time.Time) (bool, error)

	// ListByFile returns all requests for a file, newest first.
	ListByFile(ctx context.Context, fileID string) ([]*models.AccessRequest, error)
}
