package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/storage"
	"github.com/securepass/securepass/internal/utils"
)

// resolveApprovedRequest runs the gate checks shared by content download and
// key release: the share must exist, the request token must be approved for
// exactly this file, and the owner must not have blocked downloads. Writes
// the error response and returns false when any gate fails.
func resolveApprovedRequest(w http.ResponseWriter, r *http.Request, repos *repository.Repositories) (*models.File, *models.AccessRequest, bool) {
	shareID := r.PathValue("shareID")
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		sendError(w, "Request ID is required", "MISSING_REQUEST_ID", http.StatusBadRequest)
		return nil, nil, false
	}

	file, err := repos.Files.GetByShareID(r.Context(), shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
		} else {
			slog.Error("failed to load file by share ID", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		}
		return nil, nil, false
	}

	request, err := repos.Requests.GetByRequestID(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Request not found", "REQUEST_NOT_FOUND", http.StatusNotFound)
		} else {
			slog.Error("failed to load access request", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		}
		return nil, nil, false
	}

	if request.FileID != file.ID {
		sendError(w, "Not authorized to download this file", "NOT_AUTHORIZED", http.StatusForbidden)
		return nil, nil, false
	}
	if request.Status != models.RequestStatusApproved {
		sendError(w, "Request has not been approved", "REQUEST_NOT_APPROVED", http.StatusForbidden)
		return nil, nil, false
	}
	if file.BlocksDownloads {
		sendError(w, "Downloads for this share have been disabled", "DOWNLOADS_BLOCKED", http.StatusGone)
		return nil, nil, false
	}

	return file, request, true
}

// authorizeDownload adds the liveness gates the content path needs on top of
// resolveApprovedRequest. Key release skips these: an approved recipient can
// still fetch the key for an expired file until the sweeper closes the
// download gate.
func authorizeDownload(w http.ResponseWriter, r *http.Request, repos *repository.Repositories) (*models.File, *models.AccessRequest, bool) {
	file, request, ok := resolveApprovedRequest(w, r, repos)
	if !ok {
		return nil, nil, false
	}

	if !file.Ready() {
		sendError(w, "File upload is not complete", "FILE_NOT_READY", http.StatusBadRequest)
		return nil, nil, false
	}
	if file.Expired(time.Now()) {
		sendError(w, "File has expired", "FILE_EXPIRED", http.StatusGone)
		return nil, nil, false
	}

	return file, request, true
}

// DownloadHandler handles GET /api/download/{shareID}?request_id=...
// Streams the ciphertext blob to an approved requester, consuming one
// distinct-requester quota slot on the requester's first download.
func DownloadHandler(repos *repository.Repositories, blobs storage.BlobStore, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, request, ok := authorizeDownload(w, r, repos)
		if !ok {
			metrics.DownloadsTotal.WithLabelValues("denied").Inc()
			return
		}

		ipHash := hashRequestIP(r, cfg)
		allowed, err := repos.Downloads.Authorize(r.Context(), file.ID, request.RequestID, ipHash, file.MaxDownloads)
		if err != nil {
			slog.Error("failed to authorize download", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !allowed {
			metrics.DownloadsTotal.WithLabelValues("quota_exceeded").Inc()
			sendError(w, "Download limit for this share has been reached", "QUOTA_EXHAUSTED", http.StatusGone)
			return
		}

		reader, err := blobs.Get(r.Context(), file.BlobKey)
		if err != nil {
			slog.Error("failed to open blob", "error", err, "blob_key", file.BlobKey)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		defer reader.Close()

		setNoStoreHeaders(w)
		// The payload is ciphertext; the stored MIME type only comes back
		// through the key endpoint for the client to apply after decryption
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
		w.Header().Set("Content-Disposition", utils.ContentDisposition(file.Filename))

		if _, err := io.Copy(w, reader); err != nil {
			slog.Error("failed to stream blob", "error", err, "file_id", file.ID)
			return
		}

		metrics.DownloadsTotal.WithLabelValues("success").Inc()

		slog.Info("file downloaded",
			"file_id", file.ID,
			"request_id", request.RequestID,
			"size", file.Size,
		)
	}
}

// DecryptKeyHandler handles GET /api/download/{shareID}/key?request_id=...
// Releases the client-wrapped content key to an approved requester. Key
// release does not consume a download slot: the key is useless without the
// ciphertext, and retrying a failed decrypt must not burn quota.
func DecryptKeyHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, request, ok := resolveApprovedRequest(w, r, repos)
		if !ok {
			return
		}

		slog.Info("decrypt key released",
			"file_id", file.ID,
			"request_id", request.RequestID,
		)

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusOK, models.DecryptKeyResponse{
			EncryptedKey: file.EncryptedKey,
			Filename:     file.Filename,
			MimeType:     file.MimeType,
		})
	}
}
