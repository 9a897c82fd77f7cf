// Package storage provides abstraction for encrypted blob operations.
// The server never inspects blob contents; everything stored here is
// ciphertext produced by clients.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrBlobNotFound is returned when a requested blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore defines the interface for blob storage operations.
// Implementations can support S3-compatible object stores or in-memory
// stores for testing.
type BlobStore interface {
	// Put writes data from the reader to storage under the given key.
	// The size parameter is used for validation where the backend can
	// enforce it.
	Put(ctx context.Context, key string, reader io.Reader, size int64) error

	// Get returns a reader for the stored blob.
	// The caller is responsible for closing the returned ReadCloser.
	// Returns ErrBlobNotFound (wrapped) if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks whether a blob exists and returns its size.
	Exists(ctx context.Context, key string) (exists bool, size int64, err error)

	// PresignPut returns a URL that lets a client upload the blob
	// directly, valid for the given duration.
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)

	// AssembleChunks concatenates the given chunk blobs, in order, into a
	// single blob under destKey. Returns the assembled size. Chunk blobs
	// are left in place; removing them is the caller's concern.
	AssembleChunks(ctx context.Context, chunkKeys []string, destKey string) (int64, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// ChunkKey returns the blob key for one chunk of a file.
func ChunkKey(fileID string, index int) string {
	return fmt.Sprintf("files/%s/chunks/%04d", fileID, index)
}

// FileKey returns the blob key for a file's assembled content.
func FileKey(fileID string) string {
	return fmt.Sprintf("files/%s/file", fileID)
}

// StorageError represents errors from storage operations with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Put", "Get", "Delete")
	Key     string // Blob key involved
	Err     error  // Underlying error
	Message string // Human-readable message
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the given details.
func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// NewStorageErrorWithMessage creates a new StorageError with a custom message.
func NewStorageErrorWithMessage(op, key string, err error, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Key:     key,
		Err:     err,
		Message: message,
	}
}
