package models

import "time"

// Access request states. Pending may move to approved or rejected exactly
// once; terminal states never change.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// AccessRequest is one requester's petition to download a shared file. The
// requester is identified only by a salted hash of their IP; RequestID is the
// capability token handed back to them.
type AccessRequest struct {
	ID         int64
	RequestID  string
	FileID     string
	Reason     *string
	Status     string
	IPHash     string
	CreatedAt  time.Time
	ApprovedAt *time.Time
	RejectedAt *time.Time
}

// Pending reports whether the request can still be decided.
func (r *AccessRequest) Pending() bool {
	return r.Status == RequestStatusPending
}

// DownloadLog records one authorized content release. The download quota is
// enforced as COUNT(DISTINCT request_id) against the file's MaxDownloads, so
// repeat downloads through the same approved request consume a single slot.
type DownloadLog struct {
	ID        int64
	FileID    string
	RequestID string
	IPHash    string
	CreatedAt time.Time
}

// CreateAccessRequest is the request body for asking to download a share
type CreateAccessRequest struct {
	ShareID string `json:"share_id"`
	Reason  string `json:"reason,omitempty"`
}

// AccessRequestResponse is returned when a request is created or re-fetched
type AccessRequestResponse struct {
	RequestID     string    `json:"request_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	AlreadyExists bool      `json:"already_exists"`
}

// RequestStatusResponse is the anonymous status projection for a request
type RequestStatusResponse struct {
	RequestID         string     `json:"request_id"`
	Status            string     `json:"status"`
	Filename          string     `json:"filename"`
	Size              int64      `json:"size"`
	MimeType          string     `json:"mime_type"`
	CreatedAt         time.Time  `json:"created_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	DownloadAvailable bool       `json:"download_available"`
}

// RequestListItem is one row of the owner's per-file request list
type RequestListItem struct {
	RequestID  string     `json:"request_id"`
	Status     string     `json:"status"`
	Reason     *string    `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
}

// DecisionResponse is returned after approving or rejecting a request
type DecisionResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// DecryptKeyResponse carries the client-wrapped content key back to an
// approved requester
type DecryptKeyResponse struct {
	EncryptedKey string `json:"encrypted_key"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
}
