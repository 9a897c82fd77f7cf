package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// RequestRepository implements repository.RequestRepository for SQLite.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new SQLite access request repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, request_id, file_id, reason, status, ip_hash, created_at, approved_at, rejected_at
`

func scanRequest(scan func(dest ...any) error) (*models.AccessRequest, error) {
	request := &models.AccessRequest{}
	var reason sql.NullString
	var createdAt string
	var approvedAt, rejectedAt sql.NullString

	err := scan(
		&request.ID,
		&request.RequestID,
		&request.FileID,
		&reason,
		&request.Status,
		&request.IPHash,
		&createdAt,
		&approvedAt,
		&rejectedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan access request: %w", err)
	}

	if reason.Valid {
		request.Reason = &reason.String
	}
	if request.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if request.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return nil, err
	}
	if request.RejectedAt, err = parseNullTime(rejectedAt); err != nil {
		return nil, err
	}
	return request, nil
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, request *models.AccessRequest) error {
	query := `
		INSERT INTO access_requests (request_id, file_id, reason, status, ip_hash)
		VALUES (?, ?, ?, ?, ?)
	`

	var reason sql.NullString
	if request.Reason != nil {
		reason = sql.NullString{String: *request.Reason, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		request.RequestID,
		request.FileID,
		reason,
		request.Status,
		request.IPHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert access request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	request.ID = id
	return nil
}

// GetByRequestID retrieves a request by its capability token.
func (r *RequestRepository) GetByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE request_id = ?`
	return scanRequest(r.db.QueryRowContext(ctx, query, requestID).Scan)
}

// GetPendingByFileAndIP retrieves the pending request a requester already
// holds for a file, if any.
func (r *RequestRepository) GetPendingByFileAndIP(ctx context.Context, fileID, ipHash string) (*models.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE file_id = ? AND ip_hash = ? AND status = ?
	`
	return scanRequest(r.db.QueryRowContext(ctx, query, fileID, ipHash, models.RequestStatusPending).Scan)
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
		SET status = ?, %s = ?
		WHERE request_id = ? AND status = ?
	`, column)

	result, err := r.db.ExecContext(ctx, query, status, formatTime(at), requestID, models.RequestStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to decide access request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListByFile returns all requests for a file, newest first.
func (r *RequestRepository) ListByFile(ctx context.Context, fileID string) ([]*models.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE file_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.AccessRequest
	for rows.Next() {
		request, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access requests: %w", err)
	}

	return requests, nil
}
