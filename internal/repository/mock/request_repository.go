package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// RequestRepository is a mock implementation of repository.RequestRepository.
type RequestRepository struct {
	mu sync.RWMutex

	requests map[string]*models.AccessRequest // by request token
	nextID   int64

	CreateError error
	GetError    error
	DecideError error
}

// NewRequestRepository creates a new mock RequestRepository.
func NewRequestRepository() *RequestRepository {
	return &RequestRepository{requests: make(map[string]*models.AccessRequest)}
}

func (m *RequestRepository) Create(ctx context.Context, request *models.AccessRequest) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.FileID == request.FileID && r.IPHash == request.IPHash && r.Status == models.RequestStatusPending {
			return repository.ErrDuplicateKey
		}
	}
	if _, exists := m.requests[request.RequestID]; exists {
		return repository.ErrDuplicateKey
	}
	m.nextID++
	request.ID = m.nextID
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	clone := *request
	m.requests[request.RequestID] = &clone
	return nil
}

func (m *RequestRepository) GetByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	request, ok := m.requests[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *request
	return &clone, nil
}

func (m *RequestRepository) GetPendingByFileAndIP(ctx context.Context, fileID, ipHash string) (*models.AccessRequest, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.FileID == fileID && r.IPHash == ipHash && r.Status == models.RequestStatusPending {
			clone := *r
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *RequestRepository) Decide(ctx context.Context, requestID, status string, at time.Time) (bool, error) {
	if m.DecideError != nil {
		return false, m.DecideError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestID]
	if !ok || request.Status != models.RequestStatusPending {
		return false, nil
	}
	switch status {
	case models.RequestStatusApproved:
		request.ApprovedAt = &at
	case models.RequestStatusRejected:
		request.RejectedAt = &at
	default:
		return false, repository.ErrInvalidInput
	}
	request.Status = status
	return true, nil
}

func (m *RequestRepository) ListByFile(ctx context.Context, fileID string) ([]*models.AccessRequest, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var requests []*models.AccessRequest
	for _, r := range m.requests {
		if r.FileID == fileID {
			clone := *r
			requests = append(requests, &clone)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID > requests[j].ID })
	return requests, nil
}
