// Package mock provides mock implementations of repository interfaces for testing.
// These mocks allow tests to run without a real database and provide
// configurable behavior for testing error conditions and edge cases.
//
// IMPORTANT: Error injection fields (e.g., CreateError) should be set BEFORE
// any concurrent operations begin. They are not protected by the mutex.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// FileRepository is a mock implementation of repository.FileRepository.
type FileRepository struct {
	mu sync.RWMutex

	files     map[string]*models.File
	byShareID map[string]string // share token -> file ID

	// Error injection for testing error handling.
	CreateError    error
	GetError       error
	UpdateError    error
	ListError      error
	MarkSweptError error
}

// NewFileRepository creates a new mock FileRepository with default behavior.
func NewFileRepository() *FileRepository {
	return &FileRepository{
		files:     make(map[string]*models.File),
		byShareID: make(map[string]string),
	}
}

func (m *FileRepository) Create(ctx context.Context, file *models.File) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.files[file.ID]; exists {
		return repository.ErrDuplicateKey
	}
	if _, exists := m.byShareID[file.ShareID]; exists {
		return repository.ErrDuplicateKey
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	clone := *file
	m.files[file.ID] = &clone
	m.byShareID[file.ShareID] = file.ID
	return nil
}

func (m *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *file
	return &clone, nil
}

func (m *FileRepository) GetByShareID(ctx context.Context, shareID string) (*models.File, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byShareID[shareID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *m.files[id]
	return &clone, nil
}

func (m *FileRepository) IncrementUploadedChunks(ctx context.Context, id string) (int, error) {
	if m.UpdateError != nil {
		return 0, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	file.UploadedChunks++
	return file.UploadedChunks, nil
}

func (m *FileRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	if m.UpdateError != nil {
		return false, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok || file.UploadStatus != from {
		return false, nil
	}
	file.UploadStatus = to
	return true, nil
}

func (m *FileRepository) SetAssembled(ctx context.Context, id, blobKey, encryptedKey string) (bool, error) {
	if m.UpdateError != nil {
		return false, m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok || file.UploadStatus != models.FileStatusChunksReceived {
		return false, nil
	}
	file.BlobKey = blobKey
	file.EncryptedKey = encryptedKey
	file.UploadStatus = models.FileStatusCompleted
	return true, nil
}

func (m *FileRepository) UpdateBlocks(ctx context.Context, id string, blocksRequests, blocksDownloads bool) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	file.BlocksRequests = file.BlocksRequests || blocksRequests
	file.BlocksDownloads = file.BlocksDownloads || blocksDownloads
	return nil
}

func (m *FileRepository) ListByUser(ctx context.Context, userID string, opts repository.PaginationOptions) ([]models.RecentFileItem, int, error) {
	if m.ListError != nil {
		return nil, 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []models.RecentFileItem
	for _, f := range m.files {
		if f.UserID != userID {
			continue
		}
		items = append(items, models.RecentFileItem{
			FileID:       f.ID,
			ShareID:      f.ShareID,
			Filename:     f.Filename,
			Size:         f.Size,
			UploadStatus: f.UploadStatus,
			CreatedAt:    f.CreatedAt,
			ExpiresAt:    f.ExpiresAt,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	total := len(items)
	if opts.Offset >= len(items) {
		return nil, total, nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, total, nil
}

func (m *FileRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []*models.File
	for _, f := range m.files {
		if f.ExpiresAt.Before(now) && (!f.BlocksRequests || !f.BlocksDownloads) {
			clone := *f
			files = append(files, &clone)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ExpiresAt.Before(files[j].ExpiresAt) })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *FileRepository) MarkSwept(ctx context.Context, id string) error {
	if m.MarkSweptError != nil {
		return m.MarkSweptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	file.BlocksRequests = true
	file.BlocksDownloads = true
	return nil
}

func (m *FileRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files), nil
}
