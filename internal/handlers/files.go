package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/securepass/securepass/internal/middleware"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

// loadOwnedFile resolves {shareID} and verifies the authenticated caller owns
// it, writing the error response on failure.
func loadOwnedFile(w http.ResponseWriter, r *http.Request, repos *repository.Repositories) (*models.File, bool) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
		return nil, false
	}

	shareID := r.PathValue("shareID")
	file, err := repos.Files.GetByShareID(r.Context(), shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
		} else {
			slog.Error("failed to load file by share ID", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		}
		return nil, false
	}

	if file.UserID != user.ID {
		sendError(w, "You do not own this file", "FORBIDDEN", http.StatusForbidden)
		return nil, false
	}

	return file, true
}

func fileInfoResponse(file *models.File) models.FileInfoResponse {
	return models.FileInfoResponse{
		FileID:          file.ID,
		ShareID:         file.ShareID,
		Filename:        file.Filename,
		Size:            file.Size,
		MimeType:        file.MimeType,
		UploadStatus:    file.UploadStatus,
		CreatedAt:       file.CreatedAt,
		ExpiresAt:       file.ExpiresAt,
		MaxDownloads:    file.MaxDownloads,
		BlocksRequests:  file.BlocksRequests,
		BlocksDownloads: file.BlocksDownloads,
	}
}

// FileInfoHandler handles GET /api/files/{shareID}/info.
func FileInfoHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, ok := loadOwnedFile(w, r, repos)
		if !ok {
			return
		}

		sendJSON(w, http.StatusOK, fileInfoResponse(file))
	}
}

// FileRequestsHandler handles GET /api/files/{shareID}/requests.
// Lists every access request on the owner's file, newest first. The
// requester hash is never included.
func FileRequestsHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, ok := loadOwnedFile(w, r, repos)
		if !ok {
			return
		}

		requests, err := repos.Requests.ListByFile(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to list requests", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		items := make([]models.RequestListItem, 0, len(requests))
		for _, req := range requests {
			items = append(items, models.RequestListItem{
				RequestID:  req.RequestID,
				Status:     req.Status,
				Reason:     req.Reason,
				CreatedAt:  req.CreatedAt,
				ApprovedAt: req.ApprovedAt,
				RejectedAt: req.RejectedAt,
			})
		}

		sendJSON(w, http.StatusOK, items)
	}
}

// RecentFilesHandler handles GET /api/files/recent?limit=&offset=.
func RecentFilesHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		opts := repository.DefaultPagination()
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				opts.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				opts.Offset = n
			}
		}

		files, total, err := repos.Files.ListByUser(r.Context(), user.ID, opts)
		if err != nil {
			slog.Error("failed to list files", "error", err, "user_id", user.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, models.RecentFilesResponse{
			Files:  files,
			Total:  total,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		})
	}
}

// UpdateFileHandler handles PATCH /api/files/{shareID}.
// Lets the owner cut off new requests, downloads, or both. The gates only
// ever close: sending false for a closed gate does not reopen it.
func UpdateFileHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		file, ok := loadOwnedFile(w, r, repos)
		if !ok {
			return
		}

		if file.Expired(time.Now()) {
			sendError(w, "File has expired", "FILE_EXPIRED", http.StatusGone)
			return
		}

		var req models.UpdateFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		blocksRequests := req.BlocksRequests != nil && *req.BlocksRequests
		blocksDownloads := req.BlocksDownloads != nil && *req.BlocksDownloads

		if err := repos.Files.UpdateBlocks(r.Context(), file.ID, blocksRequests, blocksDownloads); err != nil {
			slog.Error("failed to update file gates", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		updated, err := repos.Files.GetByID(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to reload file", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("file gates updated",
			"file_id", file.ID,
			"blocks_requests", updated.BlocksRequests,
			"blocks_downloads", updated.BlocksDownloads,
		)

		sendJSON(w, http.StatusOK, fileInfoResponse(updated))
	}
}
