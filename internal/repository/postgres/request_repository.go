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

// RequestRepository implements repository.RequestRepository for PostgreSQL.
type RequestRepository struct {
	pool *Pool
}

// NewRequestRepository creates a new PostgreSQL access request repository.
func NewRequestRepository(pool *Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

const requestColumns = `
	id, request_id, file_id, reason, status, ip_hash, created_at, approved_at, rejected_at
`

func scanRequest(row pgx.Row) (*models.AccessRequest, error) {
	request := &models.AccessRequest{}
	err := row.Scan(
		&request.ID,
		&request.RequestID,
		&request.FileID,
		&request.Reason,
		&request.Status,
		&request.IPHash,
		&request.CreatedAt,
		&request.ApprovedAt,
		&request.RejectedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan access request: %w", err)
	}
	return request, nil
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, request *models.AccessRequest) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO access_requests (request_id, file_id, reason, status, ip_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		request.RequestID,
		request.FileID,
		request.Reason,
		request.Status,
		request.IPHash,
	).Scan(&request.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert access request: %w", err)
	}
	return nil
}

// GetByRequestID retrieves a request by its capability token.
func (r *RequestRepository) GetByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM access_requests WHERE request_id = $1`, requestID,
	))
}

// GetPendingByFileAndIP retrieves the pending request a requester already
// holds for a file, if any.
func (r *RequestRepository) GetPendingByFileAndIP(ctx context.Context, fileID, ipHash string) (*models.AccessRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE file_id = $1 AND ip_hash = $2 AND status = $3
	`, fileID, ipHash, models.RequestStatusPending))
}

// Decide moves a pending request to a terminal status.
func (r *RequestRepository) Decide(ctx context.Context, requestID, status string, at time.Time) (bool, error) {
	var column string
	switch status {
	case models.RequestStatusApproved:
		column = "approved_at"
	case models.RequestStatusRejected:
		column = "rejected_at"
	default:
		return false, repository.ErrInvalidInput
	}

	query := fmt.Sprintf(`
		UPDATE access_requests
		SET status = $1, %s = $2
		WHERE request_id = $3 AND status = $4
	`, column)

	tag, err := r.pool.Exec(ctx, query, status, at, requestID, models.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to decide access request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByFile returns all requests for a file, newest first.
func (r *RequestRepository) ListByFile(ctx context.Context, fileID string) ([]*models.AccessRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM access_requests
		WHERE file_id = $1
		ORDER BY created_at DESC, id DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AccessRequest
	for rows.Next() {
		request := &models.AccessRequest{}
		if err := rows.Scan(
			&request.ID, &request.RequestID, &request.FileID, &request.Reason,
			&request.Status, &request.IPHash, &request.CreatedAt,
			&request.ApprovedAt, &request.RejectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access requests: %w", err)
	}

	return requests, nil
}
