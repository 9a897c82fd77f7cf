package models

import "time"

// Upload session states.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusExpired   = "expired"
)

// UploadSession is the short-lived coordinator for one chunked upload. The
// SessionKey is the bearer secret the client presents on every chunk and
// completion call.
type UploadSession struct {
	ID          int64
	SessionKey  string
	FileID      string
	Status      string
	ChunkSize   int64
	TotalChunks int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// UploadInitiateRequest is the request body for starting a chunked upload
type UploadInitiateRequest struct {
	Filename     string `json:"filename"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	ChunkSize    int64  `json:"chunk_size,omitempty"`
	ExpiresHours int    `json:"expires_hours,omitempty"`
	MaxDownloads int    `json:"max_downloads,omitempty"`
}

// UploadInitiateResponse is returned after a session is created
type UploadInitiateResponse struct {
	FileID     string    `json:"file_id"`
	ShareID    string    `json:"share_id"`
	SessionKey string    `json:"session_key"`
	ChunkSize  int64     `json:"chunk_size"`
	ChunkCount int       `json:"chunk_count"`
	ChunkURLs  []string  `json:"chunk_urls"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ChunkConfirmRequest is the request body for delivering a chunk
type ChunkConfirmRequest struct {
	SessionKey string `json:"session_key"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkData  string `json:"chunk_data"` // base64 ciphertext
}

// ChunkConfirmResponse reports progress after a chunk lands
type ChunkConfirmResponse struct {
	ChunkIndex     int  `json:"chunk_index"`
	UploadedChunks int  `json:"uploaded_chunks"`
	ChunkCount     int  `json:"chunk_count"`
	Complete       bool `json:"complete"`
}

// UploadCompleteRequest finalizes an upload with the client-wrapped key
type UploadCompleteRequest struct {
	SessionKey   string `json:"session_key"`
	EncryptedKey string `json:"encrypted_key"`
}

// UploadCompleteResponse is returned once the file is assembled
type UploadCompleteResponse struct {
	ShareID   string    `json:"share_id"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadStatusResponse reports session progress
type UploadStatusResponse struct {
	SessionKey     string    `json:"session_key"`
	Status         string    `json:"status"`
	UploadedChunks int       `json:"uploaded_chunks"`
	ChunkCount     int       `json:"chunk_count"`
	MissingChunks  []int     `json:"missing_chunks,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// UploadCompleteErrorResponse is the error body when chunks are missing
type UploadCompleteErrorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	MissingChunks int    `json:"missing_chunks"`
}
