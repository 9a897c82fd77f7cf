package models

import "time"

// FileInfoResponse is the owner/metadata projection of a file
type FileInfoResponse struct {
	FileID          string    `json:"file_id"`
	ShareID         string    `json:"share_id"`
	Filename        string    `json:"filename"`
	Size            int64     `json:"size"`
	MimeType        string    `json:"mime_type"`
	UploadStatus    string    `json:"upload_status"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	MaxDownloads    int       `json:"max_downloads"`
	BlocksRequests  bool      `json:"blocks_requests"`
	BlocksDownloads bool      `json:"blocks_downloads"`
}

// RecentFileItem is one row of the owner's file listing, with aggregate
// counters that degrade to zero when the aggregates cannot be read.
type RecentFileItem struct {
	FileID        string    `json:"file_id"`
	ShareID       string    `json:"share_id"`
	Filename      string    `json:"filename"`
	Size          int64     `json:"size"`
	UploadStatus  string    `json:"upload_status"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	RequestCount  int       `json:"request_count"`
	DownloadCount int       `json:"download_count"`
}

// RecentFilesResponse is the paginated file listing
type RecentFilesResponse struct {
	Files  []RecentFileItem `json:"files"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// UpdateFileRequest lets an owner cut off a share. The gates are monotonic:
// true can be set, false is ignored.
type UpdateFileRequest struct {
	BlocksRequests  *bool `json:"blocks_requests,omitempty"`
	BlocksDownloads *bool `json:"blocks_downloads,omitempty"`
}
