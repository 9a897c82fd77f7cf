package models

import "time"

// Upload lifecycle states for a File.
const (
	FileStatusUploading      = "uploading"
	FileStatusChunksReceived = "chunks_received"
	FileStatusCompleted      = "completed"
	FileStatusFailed         = "failed"
)

// File represents an encrypted file record. The server only ever sees
// ciphertext; EncryptedKey is the client-wrapped content key stored verbatim.
type File struct {
	ID              string
	ShareID         string
	Filename        string
	Size            int64
	MimeType        string
	EncryptedKey    string
	BlobKey         string
	UploadStatus    string
	ChunkCount      int
	UploadedChunks  int
	CreatedAt       time.Time
	ExpiresAt       time.Time
	MaxDownloads    int
	UserID          string
	BlocksRequests  bool
	BlocksDownloads bool
}

// Expired reports whether the file's lifetime has passed at the given instant.
func (f *File) Expired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// Ready reports whether the file has been assembled and can be shared.
func (f *File) Ready() bool {
	return f.UploadStatus == FileStatusCompleted
}

// FileChunk tracks a single fixed-index slice of a file during upload.
// UploadedAt is nil until the client confirms the chunk landed in blob
// storage; confirmation is the only transition the record ever makes.
type FileChunk struct {
	ID         int64
	FileID     string
	ChunkIndex int
	Size       int64
	BlobKey    string
	CreatedAt  time.Time
	UploadedAt *time.Time
}

// Uploaded reports whether this chunk has been confirmed.
func (c *FileChunk) Uploaded() bool {
	return c.UploadedAt != nil
}

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	BlobStore      string `json:"blob_store"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	TotalFiles     int    `json:"total_files"`
	ActiveSessions int    `json:"active_sessions"`
}
