// Package mock provides an in-memory BlobStore implementation for testing.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/securepass/securepass/internal/storage"
)

// BlobStore is an in-memory implementation of storage.BlobStore for testing.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// Error injection for testing failure paths
	PutError      error
	GetError      error
	DeleteError   error
	ExistsError   error
	PresignError  error
	AssembleError error
	HealthError   error
}

// New creates a new in-memory BlobStore.
func New() *BlobStore {
	return &BlobStore{
		blobs: make(map[string][]byte),
	}
}

// Put stores the blob in memory.
func (m *BlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	if m.PutError != nil {
		return m.PutError
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.NewStorageError("Put", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

// Get returns a reader for the stored blob.
func (m *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}

	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.NewStorageError("Get", key, storage.ErrBlobNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes a blob. Deleting a missing key is not an error.
func (m *BlobStore) Delete(ctx context.Context, key string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// Exists reports whether the blob exists and its size.
func (m *BlobStore) Exists(ctx context.Context, key string) (bool, int64, error) {
	if m.ExistsError != nil {
		return false, 0, m.ExistsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return false, 0, nil
	}
	return true, int64(len(data)), nil
}

// PresignPut returns a synthetic URL. Tests upload through Put instead.
func (m *BlobStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.PresignError != nil {
		return "", m.PresignError
	}
	return fmt.Sprintf("https://blobs.test/%s?expires=%d", key, int64(ttl.Seconds())), nil
}

// AssembleChunks concatenates the chunk blobs into destKey and returns the
// assembled size. Chunk blobs are left in place.
func (m *BlobStore) AssembleChunks(ctx context.Context, chunkKeys []string, destKey string) (int64, error) {
	if m.AssembleError != nil {
		return 0, m.AssembleError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var assembled []byte
	for i, chunkKey := range chunkKeys {
		data, ok := m.blobs[chunkKey]
		if !ok {
			return 0, storage.NewStorageErrorWithMessage("AssembleChunks", chunkKey,
				storage.ErrBlobNotFound, fmt.Sprintf("chunk %d missing during assembly", i))
		}
		assembled = append(assembled, data...)
	}

	m.blobs[destKey] = assembled
	return int64(len(assembled)), nil
}

// HealthCheck always succeeds unless an error is injected.
func (m *BlobStore) HealthCheck(ctx context.Context) error {
	return m.HealthError
}

// BlobCount returns the number of stored blobs.
func (m *BlobStore) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// HasBlob reports whether a blob exists under the key.
func (m *BlobStore) HasBlob(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok
}

// BlobData returns a copy of the stored blob data, or nil if missing.
func (m *BlobStore) BlobData(key string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
