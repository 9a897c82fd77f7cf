package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/middleware"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/utils"
)

// CreateRequestHandler handles POST /api/requests.
// An anonymous requester asks to download a share. Creation is idempotent
// per requester: a second ask while the first is still pending returns the
// same request token instead of a new row.
func CreateRequestHandler(repos *repository.Repositories, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.CreateAccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}
		if req.ShareID == "" {
			sendError(w, "Share ID is required", "MISSING_SHARE_ID", http.StatusBadRequest)
			return
		}

		file, err := repos.Files.GetByShareID(r.Context(), req.ShareID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				sendError(w, "File not found", "FILE_NOT_FOUND", http.StatusNotFound)
			} else {
				slog.Error("failed to load file by share ID", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		if !file.Ready() {
			sendError(w, "File upload is not complete", "FILE_NOT_READY", http.StatusBadRequest)
			return
		}
		if file.Expired(time.Now()) {
			sendError(w, "File has expired", "FILE_EXPIRED", http.StatusGone)
			return
		}
		if file.BlocksRequests {
			sendError(w, "This share is no longer accepting requests", "REQUESTS_BLOCKED", http.StatusGone)
			return
		}

		used, err := repos.Downloads.CountDistinct(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to count downloads", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if used >= file.MaxDownloads {
			sendError(w, "Download limit for this share has been reached", "QUOTA_EXHAUSTED", http.StatusGone)
			return
		}

		ipHash := hashRequestIP(r, cfg)

		// Requester already has a pending request for this file
		if existing, err := repos.Requests.GetPendingByFileAndIP(r.Context(), file.ID, ipHash); err == nil {
			metrics.AccessRequestsTotal.WithLabelValues("duplicate").Inc()
			sendJSON(w, http.StatusOK, models.AccessRequestResponse{
				RequestID:     existing.RequestID,
				Status:        existing.Status,
				CreatedAt:     existing.CreatedAt,
				AlreadyExists: true,
			})
			return
		} else if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to check pending request", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		request, err := newAccessRequest(file.ID, req.Reason, ipHash)
		if err != nil {
			slog.Error("failed to build access request", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if err := repos.Requests.Create(r.Context(), request); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				// Lost a race with a concurrent create from the same
				// requester; the unique index collapsed them to one row
				existing, err := repos.Requests.GetPendingByFileAndIP(r.Context(), file.ID, ipHash)
				if err != nil {
					slog.Error("failed to load winning request", "error", err, "file_id", file.ID)
					sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
					return
				}
				metrics.AccessRequestsTotal.WithLabelValues("duplicate").Inc()
				sendJSON(w, http.StatusOK, models.AccessRequestResponse{
					RequestID:     existing.RequestID,
					Status:        existing.Status,
					CreatedAt:     existing.CreatedAt,
					AlreadyExists: true,
				})
				return
			}
			slog.Error("failed to create access request", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.AccessRequestsTotal.WithLabelValues("created").Inc()

		slog.Info("access request created",
			"request_id", request.RequestID,
			"file_id", file.ID,
		)

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusCreated, models.AccessRequestResponse{
			RequestID: request.RequestID,
			Status:    request.Status,
			CreatedAt: request.CreatedAt,
		})
	}
}

// RequestStatusHandler handles GET /api/requests/{requestID}.
// The requester polls this with their capability token; the projection never
// exposes the share ID or the owner.
func RequestStatusHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		request, file, ok := loadRequestAndFile(w, r, repos)
		if !ok {
			return
		}

		now := time.Now()
		downloadAvailable := request.Status == models.RequestStatusApproved &&
			!file.Expired(now) &&
			!file.BlocksDownloads

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusOK, models.RequestStatusResponse{
			RequestID:         request.RequestID,
			Status:            request.Status,
			Filename:          file.Filename,
			Size:              file.Size,
			MimeType:          file.MimeType,
			CreatedAt:         request.CreatedAt,
			ApprovedAt:        request.ApprovedAt,
			DownloadAvailable: downloadAvailable,
		})
	}
}

// ApproveRequestHandler handles POST /api/requests/{requestID}/approve.
func ApproveRequestHandler(repos *repository.Repositories) http.HandlerFunc {
	return decisionHandler(repos, models.RequestStatusApproved)
}

// RejectRequestHandler handles POST /api/requests/{requestID}/reject.
func RejectRequestHandler(repos *repository.Repositories) http.HandlerFunc {
	return decisionHandler(repos, models.RequestStatusRejected)
}

// decisionHandler moves a pending request to a terminal status. The decision
// fires at most once; whoever loses the race gets a bad-request error naming
// the status that stuck.
func decisionHandler(repos *repository.Repositories, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		user := middleware.UserFromContext(r.Context())
		if user == nil {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		request, file, ok := loadRequestAndFile(w, r, repos)
		if !ok {
			return
		}

		if file.UserID != user.ID {
			sendError(w, "You do not own this file", "FORBIDDEN", http.StatusForbidden)
			return
		}
		// Expiry only blocks approval; rejecting a stale request is
		// still allowed.
		if status == models.RequestStatusApproved && file.Expired(time.Now()) {
			sendError(w, "File has expired", "FILE_EXPIRED", http.StatusGone)
			return
		}

		decided, err := repos.Requests.Decide(r.Context(), request.RequestID, status, time.Now())
		if err != nil {
			slog.Error("failed to decide request", "error", err, "request_id", request.RequestID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !decided {
			current, err := repos.Requests.GetByRequestID(r.Context(), request.RequestID)
			if err != nil {
				slog.Error("failed to reload request", "error", err, "request_id", request.RequestID)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			sendError(w,
				fmt.Sprintf("Request is already %s", current.Status),
				"REQUEST_ALREADY_DECIDED",
				http.StatusBadRequest,
			)
			return
		}

		metrics.RequestDecisionsTotal.WithLabelValues(status).Inc()

		slog.Info("access request decided",
			"request_id", request.RequestID,
			"file_id", file.ID,
			"status", status,
		)

		sendJSON(w, http.StatusOK, models.DecisionResponse{
			RequestID: request.RequestID,
			Status:    status,
		})
	}
}

// hashRequestIP reduces the caller's address to the salted hash used for
// dedup and download logging.
func hashRequestIP(r *http.Request, cfg *config.Config) string {
	return utils.HashIP(getClientIP(r), cfg.IPHashSalt)
}

// newAccessRequest builds a pending request with a fresh capability token.
func newAccessRequest(fileID, reason, ipHash string) (*models.AccessRequest, error) {
	requestID, err := utils.GenerateSecret()
	if err != nil {
		return nil, err
	}

	request := &models.AccessRequest{
		RequestID: requestID,
		FileID:    fileID,
		Status:    models.RequestStatusPending,
		IPHash:    ipHash,
		CreatedAt: time.Now(),
	}
	if reason != "" {
		request.Reason = &reason
	}
	return request, nil
}

// loadRequestAndFile resolves {requestID} from the path plus its file,
// writing the error response on failure.
func loadRequestAndFile(w http.ResponseWriter, r *http.Request, repos *repository.Repositories) (*models.AccessRequest, *models.File, bool) {
	requestID := r.PathValue("requestID")
	if requestID == "" {
		sendError(w, "Request ID is required", "MISSING_REQUEST_ID", http.StatusBadRequest)
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

	file, err := repos.Files.GetByID(r.Context(), request.FileID)
	if err != nil {
		slog.Error("failed to load file for request", "error", err, "file_id", request.FileID)
		sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return nil, nil, false
	}

	return request, file, true
}
