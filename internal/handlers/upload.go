package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/securepass/securepass/internal/billing"
	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/metrics"
	"github.com/securepass/securepass/internal/middleware"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	"github.com/securepass/securepass/internal/storage"
	"github.com/securepass/securepass/internal/utils"
)

// maxTotalChunks caps the chunk plan so tiny chunk sizes on huge files
// cannot flood the chunk table.
const maxTotalChunks = 10000

// UploadInitiateHandler handles POST /api/upload/initiate.
// Creates the file record, the per-chunk plan, and the upload session, and
// hands back presigned PUT URLs for every chunk.
func UploadInitiateHandler(repos *repository.Repositories, blobs storage.BlobStore, cfg *config.Config, limits *billing.Service) http.HandlerFunc {
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

		var req models.UploadInitiateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		if req.Filename == "" {
			sendError(w, "Filename is required", "MISSING_FILENAME", http.StatusBadRequest)
			return
		}
		req.Filename = utils.SanitizeFilename(req.Filename)

		if req.Size <= 0 {
			sendError(w, "Size must be positive", "INVALID_SIZE", http.StatusBadRequest)
			return
		}

		planLimits := limits.LimitsFor(user.Plan)
		if req.Size > planLimits.MaxFileSize {
			sendError(w,
				fmt.Sprintf("File size exceeds maximum of %d bytes", planLimits.MaxFileSize),
				"FILE_TOO_LARGE",
				http.StatusRequestEntityTooLarge,
			)
			return
		}

		chunkSize := config.ClampChunkSize(req.ChunkSize)

		chunkCount := int(req.Size / chunkSize)
		if req.Size%chunkSize != 0 {
			chunkCount++
		}
		if chunkCount > maxTotalChunks {
			sendError(w,
				fmt.Sprintf("File requires too many chunks (maximum %d). Try increasing chunk size.", maxTotalChunks),
				"TOO_MANY_CHUNKS",
				http.StatusBadRequest,
			)
			return
		}

		expiresHours := req.ExpiresHours
		if expiresHours <= 0 {
			expiresHours = cfg.DefaultExpirationHours
		}
		if expiresHours > planLimits.MaxExpirationHours {
			sendError(w,
				fmt.Sprintf("Expiration exceeds maximum of %d hours", planLimits.MaxExpirationHours),
				"EXPIRATION_TOO_LONG",
				http.StatusBadRequest,
			)
			return
		}

		maxDownloads := req.MaxDownloads
		if maxDownloads <= 0 {
			maxDownloads = cfg.DefaultMaxDownloads
		}
		if maxDownloads > planLimits.MaxDownloadsPerFile {
			sendError(w,
				fmt.Sprintf("Download limit exceeds maximum of %d", planLimits.MaxDownloadsPerFile),
				"MAX_DOWNLOADS_EXCEEDED",
				http.StatusBadRequest,
			)
			return
		}

		shareID, err := utils.GenerateSecret()
		if err != nil {
			slog.Error("failed to generate share ID", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		sessionKey, err := utils.GenerateSessionKey()
		if err != nil {
			slog.Error("failed to generate session key", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		now := time.Now()
		file := &models.File{
			ID:           uuid.NewString(),
			ShareID:      shareID,
			Filename:     req.Filename,
			Size:         req.Size,
			MimeType:     req.MimeType,
			UploadStatus: models.FileStatusUploading,
			ChunkCount:   chunkCount,
			CreatedAt:    now,
			ExpiresAt:    now.Add(time.Duration(expiresHours) * time.Hour),
			MaxDownloads: maxDownloads,
			UserID:       user.ID,
		}

		if err := repos.Files.Create(r.Context(), file); err != nil {
			slog.Error("failed to create file record", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		chunks := make([]*models.FileChunk, 0, chunkCount)
		for i := 0; i < chunkCount; i++ {
			size := chunkSize
			if i == chunkCount-1 {
				if rem := req.Size % chunkSize; rem != 0 {
					size = rem
				}
			}
			chunks = append(chunks, &models.FileChunk{
				FileID:     file.ID,
				ChunkIndex: i,
				Size:       size,
				BlobKey:    storage.ChunkKey(file.ID, i),
			})
		}
		if err := repos.Chunks.CreateBatch(r.Context(), chunks); err != nil {
			slog.Error("failed to create chunk plan", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		session := &models.UploadSession{
			SessionKey:  sessionKey,
			FileID:      file.ID,
			Status:      models.SessionStatusActive,
			ChunkSize:   chunkSize,
			TotalChunks: chunkCount,
			CreatedAt:   now,
			ExpiresAt:   now.Add(time.Duration(cfg.UploadSessionExpireHours) * time.Hour),
		}
		if err := repos.Sessions.Create(r.Context(), session); err != nil {
			slog.Error("failed to create upload session", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		ttl := time.Duration(cfg.PresignTTLSeconds) * time.Second
		chunkURLs := make([]string, chunkCount)
		for i := 0; i < chunkCount; i++ {
			url, err := blobs.PresignPut(r.Context(), storage.ChunkKey(file.ID, i), ttl)
			if err != nil {
				slog.Error("failed to presign chunk URL", "error", err, "file_id", file.ID, "chunk_index", i)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			chunkURLs[i] = url
		}

		metrics.UploadsInitiatedTotal.Inc()

		slog.Info("upload session initiated",
			"file_id", file.ID,
			"user_id", user.ID,
			"size", req.Size,
			"chunk_count", chunkCount,
		)

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusCreated, models.UploadInitiateResponse{
			FileID:     file.ID,
			ShareID:    file.ShareID,
			SessionKey: session.SessionKey,
			ChunkSize:  chunkSize,
			ChunkCount: chunkCount,
			ChunkURLs:  chunkURLs,
			ExpiresAt:  session.ExpiresAt,
		})
	}
}

// resolveSession loads the session for a key and lazily expires it if its
// deadline has passed. Writes the error response itself and returns nil when
// the caller should stop. The returned session may be in any status.
func resolveSession(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, sessionKey string) *models.UploadSession {
	if sessionKey == "" {
		sendError(w, "Session key is required", "MISSING_SESSION_KEY", http.StatusBadRequest)
		return nil
	}

	session, err := repos.Sessions.GetByKey(r.Context(), sessionKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Upload session not found", "SESSION_NOT_FOUND", http.StatusNotFound)
		} else {
			slog.Error("failed to load upload session", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		}
		return nil
	}

	now := time.Now()
	if session.Status == models.SessionStatusActive && now.After(session.ExpiresAt) {
		if _, err := repos.Sessions.ExpireIfPast(r.Context(), session.ID, now); err != nil {
			slog.Error("failed to expire upload session", "error", err, "session_id", session.ID)
		}
		session.Status = models.SessionStatusExpired
	}

	return session
}

// resolveActiveSession is resolveSession plus the active gate for the paths
// that mutate upload state.
func resolveActiveSession(w http.ResponseWriter, r *http.Request, repos *repository.Repositories, sessionKey string) *models.UploadSession {
	session := resolveSession(w, r, repos, sessionKey)
	if session == nil {
		return nil
	}

	if session.Status != models.SessionStatusActive {
		sendError(w, "Upload session is no longer active", "SESSION_EXPIRED", http.StatusGone)
		return nil
	}

	return session
}

// UploadChunkHandler handles POST /api/upload/chunk.
// The client either relays the ciphertext chunk inline (base64) or has
// already PUT it through its presigned URL; either way this confirms the
// chunk exactly once and reports progress.
func UploadChunkHandler(repos *repository.Repositories, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.ChunkConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		session := resolveActiveSession(w, r, repos, req.SessionKey)
		if session == nil {
			return
		}

		if req.ChunkIndex < 0 || req.ChunkIndex >= session.TotalChunks {
			sendError(w,
				fmt.Sprintf("Chunk index must be between 0 and %d", session.TotalChunks-1),
				"INVALID_CHUNK_INDEX",
				http.StatusBadRequest,
			)
			return
		}

		chunk, err := repos.Chunks.GetByFileAndIndex(r.Context(), session.FileID, req.ChunkIndex)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				sendError(w, "Chunk not found", "CHUNK_NOT_FOUND", http.StatusNotFound)
			} else {
				slog.Error("failed to load chunk record", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		if chunk.Uploaded() {
			// Replayed confirmation: report current progress without
			// touching storage again
			file, err := repos.Files.GetByID(r.Context(), session.FileID)
			if err != nil {
				slog.Error("failed to load file record", "error", err, "file_id", session.FileID)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			sendJSON(w, http.StatusOK, models.ChunkConfirmResponse{
				ChunkIndex:     req.ChunkIndex,
				UploadedChunks: file.UploadedChunks,
				ChunkCount:     file.ChunkCount,
				Complete:       file.UploadedChunks == file.ChunkCount,
			})
			return
		}

		if req.ChunkData != "" {
			// Inline relay path: decode and store the ciphertext ourselves
			data, err := base64.StdEncoding.DecodeString(req.ChunkData)
			if err != nil {
				sendError(w, "Chunk data is not valid base64", "INVALID_CHUNK_DATA", http.StatusBadRequest)
				return
			}
			if int64(len(data)) != chunk.Size {
				sendError(w,
					fmt.Sprintf("Chunk size mismatch: expected %d bytes, got %d", chunk.Size, len(data)),
					"CHUNK_SIZE_MISMATCH",
					http.StatusBadRequest,
				)
				return
			}
			if err := blobs.Put(r.Context(), chunk.BlobKey, bytes.NewReader(data), chunk.Size); err != nil {
				slog.Error("failed to store chunk blob", "error", err, "blob_key", chunk.BlobKey)
				sendError(w, "Failed to store chunk", "STORAGE_ERROR", http.StatusInternalServerError)
				return
			}
		} else {
			// Presigned path: the blob must already be there
			exists, size, err := blobs.Exists(r.Context(), chunk.BlobKey)
			if err != nil {
				slog.Error("failed to check chunk blob", "error", err, "blob_key", chunk.BlobKey)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if !exists {
				sendError(w, "Chunk has not been uploaded", "CHUNK_NOT_UPLOADED", http.StatusBadRequest)
				return
			}
			if size != chunk.Size {
				sendError(w,
					fmt.Sprintf("Chunk size mismatch: expected %d bytes, got %d", chunk.Size, size),
					"CHUNK_SIZE_MISMATCH",
					http.StatusBadRequest,
				)
				return
			}
		}

		confirmed, err := repos.Chunks.ConfirmUpload(r.Context(), chunk.ID, time.Now())
		if err != nil {
			slog.Error("failed to confirm chunk", "error", err, "chunk_id", chunk.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		file, err := repos.Files.GetByID(r.Context(), session.FileID)
		if err != nil {
			slog.Error("failed to load file record", "error", err, "file_id", session.FileID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		uploadedChunks := file.UploadedChunks
		if confirmed {
			uploadedChunks, err = repos.Files.IncrementUploadedChunks(r.Context(), session.FileID)
			if err != nil {
				slog.Error("failed to increment chunk counter", "error", err, "file_id", session.FileID)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			metrics.ChunksConfirmedTotal.Inc()

			if uploadedChunks == file.ChunkCount {
				if _, err := repos.Files.TransitionStatus(r.Context(), file.ID,
					models.FileStatusUploading, models.FileStatusChunksReceived); err != nil {
					slog.Error("failed to transition file status", "error", err, "file_id", file.ID)
				}
			}
		}

		sendJSON(w, http.StatusOK, models.ChunkConfirmResponse{
			ChunkIndex:     req.ChunkIndex,
			UploadedChunks: uploadedChunks,
			ChunkCount:     file.ChunkCount,
			Complete:       uploadedChunks == file.ChunkCount,
		})
	}
}

// UploadCompleteHandler handles POST /api/upload/complete.
// Verifies every chunk is confirmed, assembles the blob, and stores the
// client-wrapped content key. Only after this does the share become live.
func UploadCompleteHandler(repos *repository.Repositories, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		var req models.UploadCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid JSON request body", "INVALID_JSON", http.StatusBadRequest)
			return
		}

		if req.EncryptedKey == "" {
			sendError(w, "Encrypted key is required", "MISSING_ENCRYPTED_KEY", http.StatusBadRequest)
			return
		}

		session := resolveSession(w, r, repos, req.SessionKey)
		if session == nil {
			return
		}

		file, err := repos.Files.GetByID(r.Context(), session.FileID)
		if err != nil {
			slog.Error("failed to load file record", "error", err, "file_id", session.FileID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if user := middleware.UserFromContext(r.Context()); user != nil && file.UserID != user.ID {
			sendError(w, "You do not own this upload", "FORBIDDEN", http.StatusForbidden)
			return
		}

		// Already assembled: an earlier call won the race or the client
		// is retrying a lost response. Checked before the active gate,
		// which would otherwise reject the now-completed session.
		if file.UploadStatus == models.FileStatusCompleted {
			sendJSON(w, http.StatusOK, models.UploadCompleteResponse{
				ShareID:   file.ShareID,
				Size:      file.Size,
				ExpiresAt: file.ExpiresAt,
			})
			return
		}

		if session.Status != models.SessionStatusActive {
			sendError(w, "Upload session is no longer active", "SESSION_EXPIRED", http.StatusGone)
			return
		}

		missing, err := repos.Chunks.MissingIndexes(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to list missing chunks", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if len(missing) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(models.UploadCompleteErrorResponse{
				Error:         "Upload is incomplete",
				Code:          "UPLOAD_INCOMPLETE",
				MissingChunks: len(missing),
			})
			return
		}

		// The chunk handler normally flips the status at parity; cover the
		// race where the last confirmation's transition has not landed yet.
		if file.UploadStatus == models.FileStatusUploading {
			if _, err := repos.Files.TransitionStatus(r.Context(), file.ID,
				models.FileStatusUploading, models.FileStatusChunksReceived); err != nil {
				slog.Error("failed to transition file status", "error", err, "file_id", file.ID)
			}
		}

		chunks, err := repos.Chunks.ListByFile(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to list chunks", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		chunkKeys := make([]string, len(chunks))
		for i, c := range chunks {
			chunkKeys[i] = c.BlobKey
		}

		destKey := storage.FileKey(file.ID)
		assemblyStart := time.Now()
		size, err := blobs.AssembleChunks(r.Context(), chunkKeys, destKey)
		if err != nil {
			slog.Error("chunk assembly failed", "error", err, "file_id", file.ID)
			metrics.UploadsCompletedTotal.WithLabelValues("failed").Inc()
			sendError(w, "Failed to assemble file", "ASSEMBLY_FAILED", http.StatusInternalServerError)
			return
		}
		metrics.AssemblyDuration.Observe(time.Since(assemblyStart).Seconds())

		set, err := repos.Files.SetAssembled(r.Context(), file.ID, destKey, req.EncryptedKey)
		if err != nil {
			slog.Error("failed to finalize file", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if !set {
			// A concurrent completion got there first; its key and blob stand
			slog.Warn("file was finalized concurrently", "file_id", file.ID)
		}

		if _, err := repos.Sessions.Complete(r.Context(), session.ID); err != nil {
			slog.Error("failed to complete session", "error", err, "session_id", session.ID)
		}

		// Chunk blobs are no longer needed once the assembled object exists
		for _, key := range chunkKeys {
			if err := blobs.Delete(r.Context(), key); err != nil {
				slog.Warn("failed to delete chunk blob", "error", err, "blob_key", key)
			}
		}

		metrics.UploadsCompletedTotal.WithLabelValues("completed").Inc()
		metrics.UploadSizeBytes.Observe(float64(size))

		slog.Info("upload completed",
			"file_id", file.ID,
			"share_id", file.ShareID,
			"size", size,
			"chunk_count", len(chunkKeys),
		)

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusOK, models.UploadCompleteResponse{
			ShareID:   file.ShareID,
			Size:      file.Size,
			ExpiresAt: file.ExpiresAt,
		})
	}
}

// UploadStatusHandler handles GET /api/upload/status/{sessionKey}.
// Reports progress and which chunk indexes are still missing.
func UploadStatusHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		sessionKey := r.PathValue("sessionKey")
		if sessionKey == "" {
			sendError(w, "Session key is required", "MISSING_SESSION_KEY", http.StatusBadRequest)
			return
		}

		session, err := repos.Sessions.GetByKey(r.Context(), sessionKey)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				sendError(w, "Upload session not found", "SESSION_NOT_FOUND", http.StatusNotFound)
			} else {
				slog.Error("failed to load upload session", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		file, err := repos.Files.GetByID(r.Context(), session.FileID)
		if err != nil {
			slog.Error("failed to load file record", "error", err, "file_id", session.FileID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		missing, err := repos.Chunks.MissingIndexes(r.Context(), file.ID)
		if err != nil {
			slog.Error("failed to list missing chunks", "error", err, "file_id", file.ID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		status := session.Status
		if status == models.SessionStatusActive && time.Now().After(session.ExpiresAt) {
			status = models.SessionStatusExpired
		}

		setNoStoreHeaders(w)
		sendJSON(w, http.StatusOK, models.UploadStatusResponse{
			SessionKey:     session.SessionKey,
			Status:         status,
			UploadedChunks: file.UploadedChunks,
			ChunkCount:     file.ChunkCount,
			MissingChunks:  missing,
			ExpiresAt:      session.ExpiresAt,
		})
	}
}
