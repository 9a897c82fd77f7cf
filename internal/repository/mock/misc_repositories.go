package mock

import (
	"context"
	"sync"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// ChunkRepository is a mock implementation of repository.ChunkRepository.
type ChunkRepository struct {
	mu     sync.RWMutex
	chunks map[int64]*models.FileChunk
	nextID int64

	CreateError  error
	GetError     error
	ConfirmError error
}

// NewChunkRepository creates a new mock ChunkRepository.
func NewChunkRepository() *ChunkRepository {
	return &ChunkRepository{chunks: make(map[int64]*models.FileChunk)}
}

func (m *ChunkRepository) CreateBatch(ctx context.Context, chunks []*models.FileChunk) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	if len(chunks) == 0 {
		return repository.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		m.nextID++
		chunk.ID = m.nextID
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = time.Now().UTC()
		}
		clone := *chunk
		m.chunks[chunk.ID] = &clone
	}
	return nil
}

func (m *ChunkRepository) GetByFileAndIndex(ctx context.Context, fileID string, index int) (*models.FileChunk, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chunks {
		if c.FileID == fileID && c.ChunkIndex == index {
			clone := *c
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *ChunkRepository) ConfirmUpload(ctx context.Context, chunkID int64, at time.Time) (bool, error) {
	if m.ConfirmError != nil {
		return false, m.ConfirmError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	chunk, ok := m.chunks[chunkID]
	if !ok || chunk.UploadedAt != nil {
		return false, nil
	}
	chunk.UploadedAt = &at
	return true, nil
}

func (m *ChunkRepository) ListByFile(ctx context.Context, fileID string) ([]*models.FileChunk, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.FileChunk
	for i := int64(1); i <= m.nextID; i++ {
		c, ok := m.chunks[i]
		if ok && c.FileID == fileID {
			clone := *c
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *ChunkRepository) MissingIndexes(ctx context.Context, fileID string) ([]int, error) {
	chunks, err := m.ListByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	var missing []int
	for _, c := range chunks {
		if c.UploadedAt == nil {
			missing = append(missing, c.ChunkIndex)
		}
	}
	return missing, nil
}

// SessionRepository is a mock implementation of repository.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.UploadSession
	nextID   int64

	CreateError error
	GetError    error
}

// NewSessionRepository creates a new mock SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*models.UploadSession)}
}

func (m *SessionRepository) Create(ctx context.Context, session *models.UploadSession) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[session.SessionKey]; exists {
		return repository.ErrDuplicateKey
	}
	m.nextID++
	session.ID = m.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	clone := *session
	m.sessions[session.SessionKey] = &clone
	return nil
}

func (m *SessionRepository) GetByKey(ctx context.Context, sessionKey string) (*models.UploadSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *session
	return &clone, nil
}

func (m *SessionRepository) ExpireIfPast(ctx context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id && s.Status == models.SessionStatusActive && s.ExpiresAt.Before(now) {
			s.Status = models.SessionStatusExpired
			return true, nil
		}
	}
	return false, nil
}

func (m *SessionRepository) Complete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id && s.Status == models.SessionStatusActive {
			s.Status = models.SessionStatusCompleted
			return true, nil
		}
	}
	return false, nil
}

func (m *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, s := range m.sessions {
		if s.ExpiresAt.Before(now) && s.Status != models.SessionStatusCompleted {
			delete(m.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *SessionRepository) CountActive(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == models.SessionStatusActive {
			count++
		}
	}
	return count, nil
}

// DownloadRepository is a mock implementation of repository.DownloadRepository.
type DownloadRepository struct {
	mu   sync.Mutex
	logs []models.DownloadLog

	AuthorizeError error
}

// NewDownloadRepository creates a new mock DownloadRepository.
func NewDownloadRepository() *DownloadRepository {
	return &DownloadRepository{}
}

func (m *DownloadRepository) Authorize(ctx context.Context, fileID, requestID, ipHash string, maxDownloads int) (bool, error) {
	if m.AuthorizeError != nil {
		return false, m.AuthorizeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countDistinctLocked(fileID) >= maxDownloads {
		return false, nil
	}
	m.logs = append(m.logs, models.DownloadLog{
		FileID:    fileID,
		RequestID: requestID,
		IPHash:    ipHash,
		CreatedAt: time.Now().UTC(),
	})
	return true, nil
}

func (m *DownloadRepository) CountDistinct(ctx context.Context, fileID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countDistinctLocked(fileID), nil
}

func (m *DownloadRepository) countDistinctLocked(fileID string) int {
	seen := make(map[string]bool)
	for _, l := range m.logs {
		if l.FileID == fileID {
			seen[l.RequestID] = true
		}
	}
	return len(seen)
}

// UserRepository is a mock implementation of repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User // by subject

	UpsertError error
}

// NewUserRepository creates a new mock UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*models.User)}
}

func (m *UserRepository) UpsertBySubject(ctx context.Context, user *models.User) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	if user.Subject == "" {
		return repository.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.Subject]; ok {
		*user = *existing
		return nil
	}
	if user.ID == "" {
		user.ID = "user-" + user.Subject
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	user.CreatedAt = time.Now().UTC()
	clone := *user
	m.users[user.Subject] = &clone
	return nil
}

func (m *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

// HealthRepository is a mock implementation of repository.HealthRepository.
type HealthRepository struct {
	PingError error
}

// NewHealthRepository creates a new mock HealthRepository.
func NewHealthRepository() *HealthRepository {
	return &HealthRepository{}
}

func (m *HealthRepository) Ping(ctx context.Context) error {
	return m.PingError
}

// NewRepositories wires all mock repositories into a repository.Repositories
// value for tests that exercise full handler stacks without a database.
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Users:        NewUserRepository(),
		Files:        NewFileRepository(),
		Chunks:       NewChunkRepository(),
		Sessions:     NewSessionRepository(),
		Requests:     NewRequestRepository(),
		Downloads:    NewDownloadRepository(),
		Health:       NewHealthRepository(),
		DatabaseType: "mock",
		Cleanup:      func() {},
	}
}
