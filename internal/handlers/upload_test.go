package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/storage"
	"github.com/securepass/securepass/internal/testutil"
)

// initiateUpload drives the initiate handler and returns its response.
func initiateUpload(t *testing.T, env *testEnv, user *models.User, size int64) models.UploadInitiateResponse {
	t.Helper()

	handler := UploadInitiateHandler(env.repos, env.blobs, env.cfg, env.limits)
	body := jsonBody(t, models.UploadInitiateRequest{
		Filename:  "report.pdf",
		Size:      size,
		MimeType:  "application/pdf",
		ChunkSize: config.MinChunkSize,
	})

	req := authed(httptest.NewRequest("POST", "/api/upload/initiate", body), user)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("initiate status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp models.UploadInitiateResponse
	decodeBody(t, rec.Body, &resp)
	return resp
}

// confirmChunk drives the chunk handler with an inline base64 payload.
func confirmChunk(t *testing.T, env *testEnv, sessionKey string, index int, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	handler := UploadChunkHandler(env.repos, env.blobs)
	body := jsonBody(t, models.ChunkConfirmRequest{
		SessionKey: sessionKey,
		ChunkIndex: index,
		ChunkData:  base64.StdEncoding.EncodeToString(data),
	})

	req := httptest.NewRequest("POST", "/api/upload/chunk", body)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func chunkPayload(size int64, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, int(size))
}

func TestUploadInitiate(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)

	// 2 full chunks plus a 75712-byte remainder
	resp := initiateUpload(t, env, user, 600000)

	if resp.ChunkCount != 3 {
		t.Errorf("chunk count = %d, want 3", resp.ChunkCount)
	}
	if resp.ChunkSize != config.MinChunkSize {
		t.Errorf("chunk size = %d, want %d", resp.ChunkSize, int64(config.MinChunkSize))
	}
	if len(resp.ChunkURLs) != 3 {
		t.Errorf("chunk URLs = %d, want 3", len(resp.ChunkURLs))
	}
	if resp.SessionKey == "" || resp.ShareID == "" {
		t.Error("expected session key and share ID")
	}

	file, err := env.repos.Files.GetByID(context.Background(), resp.FileID)
	if err != nil {
		t.Fatalf("file record missing: %v", err)
	}
	if file.UploadStatus != models.FileStatusUploading {
		t.Errorf("status = %q, want %q", file.UploadStatus, models.FileStatusUploading)
	}

	chunks, err := env.repos.Chunks.ListByFile(context.Background(), resp.FileID)
	if err != nil {
		t.Fatalf("failed to list chunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunk plan = %d rows, want 3", len(chunks))
	}
	if chunks[2].Size != 600000-2*config.MinChunkSize {
		t.Errorf("last chunk size = %d, want %d", chunks[2].Size, 600000-2*config.MinChunkSize)
	}
}

func TestUploadInitiateValidation(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	handler := UploadInitiateHandler(env.repos, env.blobs, env.cfg, env.limits)

	tests := []struct {
		name       string
		body       models.UploadInitiateRequest
		authed     bool
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unauthenticated",
			body:       models.UploadInitiateRequest{Filename: "a.enc", Size: 100},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "missing filename",
			body:       models.UploadInitiateRequest{Size: 100},
			authed:     true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_FILENAME",
		},
		{
			name:       "non-positive size",
			body:       models.UploadInitiateRequest{Filename: "a.enc", Size: 0},
			authed:     true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_SIZE",
		},
		{
			name:       "over plan size limit",
			body:       models.UploadInitiateRequest{Filename: "a.enc", Size: env.cfg.MaxFileSize + 1},
			authed:     true,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
		},
		{
			name:       "expiration too long",
			body:       models.UploadInitiateRequest{Filename: "a.enc", Size: 100, ExpiresHours: env.cfg.MaxExpirationHours + 1},
			authed:     true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "EXPIRATION_TOO_LONG",
		},
		{
			name:       "too many downloads",
			body:       models.UploadInitiateRequest{Filename: "a.enc", Size: 100, MaxDownloads: env.cfg.DefaultMaxDownloads + 1},
			authed:     true,
			wantStatus: http.StatusBadRequest,
			wantCode:   "MAX_DOWNLOADS_EXCEEDED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/upload/initiate", jsonBody(t, tt.body))
			if tt.authed {
				req = authed(req, user)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			wantErrorCode(t, rec.Body, tt.wantCode)
		})
	}
}

func TestUploadChunkProgress(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)

	sizes := []int64{config.MinChunkSize, config.MinChunkSize, 600000 - 2*config.MinChunkSize}
	for i, size := range sizes {
		rec := confirmChunk(t, env, init.SessionKey, i, chunkPayload(size, byte(i)))
		if rec.Code != http.StatusOK {
			t.Fatalf("chunk %d status = %d: %s", i, rec.Code, rec.Body.String())
		}

		var resp models.ChunkConfirmResponse
		decodeBody(t, rec.Body, &resp)
		if resp.UploadedChunks != i+1 {
			t.Errorf("chunk %d: uploaded = %d, want %d", i, resp.UploadedChunks, i+1)
		}
		if resp.Complete != (i == len(sizes)-1) {
			t.Errorf("chunk %d: complete = %v", i, resp.Complete)
		}
	}

	file, err := env.repos.Files.GetByID(context.Background(), init.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.UploadStatus != models.FileStatusChunksReceived {
		t.Errorf("status = %q, want %q", file.UploadStatus, models.FileStatusChunksReceived)
	}
	for i := range sizes {
		if !env.blobs.HasBlob(storage.ChunkKey(init.FileID, i)) {
			t.Errorf("chunk blob %d missing", i)
		}
	}
}

func TestUploadChunkReplayDoesNotDoubleCount(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)

	payload := chunkPayload(config.MinChunkSize, 0xAA)
	if rec := confirmChunk(t, env, init.SessionKey, 0, payload); rec.Code != http.StatusOK {
		t.Fatalf("first confirm status = %d", rec.Code)
	}

	// Replaying the same chunk reports current progress without
	// incrementing and without a second blob write. The injected Put
	// error would surface as a 500 if the handler touched storage.
	env.blobs.PutError = errors.New("put rejected")
	rec := confirmChunk(t, env, init.SessionKey, 0, payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	env.blobs.PutError = nil
	var resp models.ChunkConfirmResponse
	decodeBody(t, rec.Body, &resp)
	if resp.UploadedChunks != 1 {
		t.Errorf("uploaded after replay = %d, want 1", resp.UploadedChunks)
	}

	file, err := env.repos.Files.GetByID(context.Background(), init.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.UploadedChunks != 1 {
		t.Errorf("counter = %d, want 1", file.UploadedChunks)
	}
}

func TestUploadChunkValidation(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)
	handler := UploadChunkHandler(env.repos, env.blobs)

	t.Run("unknown session", func(t *testing.T) {
		body := jsonBody(t, models.ChunkConfirmRequest{SessionKey: "no-such-session", ChunkIndex: 0})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("POST", "/api/upload/chunk", body))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		wantErrorCode(t, rec.Body, "SESSION_NOT_FOUND")
	})

	t.Run("index out of range", func(t *testing.T) {
		rec := confirmChunk(t, env, init.SessionKey, 3, chunkPayload(16, 0))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		wantErrorCode(t, rec.Body, "INVALID_CHUNK_INDEX")
	})

	t.Run("size mismatch", func(t *testing.T) {
		rec := confirmChunk(t, env, init.SessionKey, 0, chunkPayload(16, 0))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		wantErrorCode(t, rec.Body, "CHUNK_SIZE_MISMATCH")
	})

	t.Run("presigned blob not uploaded", func(t *testing.T) {
		body := jsonBody(t, models.ChunkConfirmRequest{SessionKey: init.SessionKey, ChunkIndex: 1})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("POST", "/api/upload/chunk", body))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		wantErrorCode(t, rec.Body, "CHUNK_NOT_UPLOADED")
	})

	t.Run("presigned blob present", func(t *testing.T) {
		key := storage.ChunkKey(init.FileID, 1)
		data := chunkPayload(config.MinChunkSize, 0xBB)
		if err := env.blobs.Put(context.Background(), key, bytes.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("failed to seed chunk blob: %v", err)
		}

		body := jsonBody(t, models.ChunkConfirmRequest{SessionKey: init.SessionKey, ChunkIndex: 1})
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("POST", "/api/upload/chunk", body))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestUploadChunkExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)

	file := testutil.SampleUploadingFile(user.ID)
	if err := env.repos.Files.Create(context.Background(), file); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	session := testutil.SampleSession(file.ID)
	session.ExpiresAt = time.Now().Add(-time.Hour)
	if err := env.repos.Sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rec := confirmChunk(t, env, session.SessionKey, 0, chunkPayload(16, 0))
	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
	wantErrorCode(t, rec.Body, "SESSION_EXPIRED")

	// The lazy check persisted the transition
	stored, err := env.repos.Sessions.GetByKey(context.Background(), session.SessionKey)
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if stored.Status != models.SessionStatusExpired {
		t.Errorf("session status = %q, want %q", stored.Status, models.SessionStatusExpired)
	}
}

func TestUploadComplete(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)

	sizes := []int64{config.MinChunkSize, config.MinChunkSize, 600000 - 2*config.MinChunkSize}
	for i, size := range sizes {
		if rec := confirmChunk(t, env, init.SessionKey, i, chunkPayload(size, byte(i))); rec.Code != http.StatusOK {
			t.Fatalf("chunk %d status = %d", i, rec.Code)
		}
	}

	handler := UploadCompleteHandler(env.repos, env.blobs)
	complete := func() *httptest.ResponseRecorder {
		body := jsonBody(t, models.UploadCompleteRequest{
			SessionKey:   init.SessionKey,
			EncryptedKey: "wrapped-key-base64",
		})
		rec := httptest.NewRecorder()
		handler(rec, authed(httptest.NewRequest("POST", "/api/upload/complete", body), user))
		return rec
	}

	rec := complete()
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.UploadCompleteResponse
	decodeBody(t, rec.Body, &resp)
	if resp.ShareID != init.ShareID {
		t.Errorf("share ID = %q, want %q", resp.ShareID, init.ShareID)
	}

	file, err := env.repos.Files.GetByID(context.Background(), init.FileID)
	if err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if file.UploadStatus != models.FileStatusCompleted {
		t.Errorf("status = %q, want %q", file.UploadStatus, models.FileStatusCompleted)
	}
	if file.EncryptedKey != "wrapped-key-base64" {
		t.Errorf("encrypted key = %q", file.EncryptedKey)
	}
	if file.BlobKey != storage.FileKey(file.ID) {
		t.Errorf("blob key = %q", file.BlobKey)
	}
	if !env.blobs.HasBlob(file.BlobKey) {
		t.Error("assembled blob missing")
	}
	if got := int64(len(env.blobs.BlobData(file.BlobKey))); got != 600000 {
		t.Errorf("assembled size = %d, want 600000", got)
	}
	// Chunk blobs are cleaned up once assembly lands
	for i := range sizes {
		if env.blobs.HasBlob(storage.ChunkKey(file.ID, i)) {
			t.Errorf("chunk blob %d not deleted", i)
		}
	}
}

func TestUploadCompleteValidation(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)
	handler := UploadCompleteHandler(env.repos, env.blobs)

	t.Run("missing encrypted key", func(t *testing.T) {
		body := jsonBody(t, models.UploadCompleteRequest{SessionKey: init.SessionKey})
		rec := httptest.NewRecorder()
		handler(rec, authed(httptest.NewRequest("POST", "/api/upload/complete", body), user))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		wantErrorCode(t, rec.Body, "MISSING_ENCRYPTED_KEY")
	})

	t.Run("chunks still missing", func(t *testing.T) {
		if rec := confirmChunk(t, env, init.SessionKey, 0, chunkPayload(config.MinChunkSize, 0)); rec.Code != http.StatusOK {
			t.Fatalf("chunk confirm status = %d", rec.Code)
		}

		body := jsonBody(t, models.UploadCompleteRequest{SessionKey: init.SessionKey, EncryptedKey: "k"})
		rec := httptest.NewRecorder()
		handler(rec, authed(httptest.NewRequest("POST", "/api/upload/complete", body), user))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		var resp models.UploadCompleteErrorResponse
		decodeBody(t, rec.Body, &resp)
		if resp.Code != "UPLOAD_INCOMPLETE" {
			t.Errorf("code = %q, want UPLOAD_INCOMPLETE", resp.Code)
		}
		if resp.MissingChunks != 2 {
			t.Errorf("missing chunks = %d, want 2", resp.MissingChunks)
		}
	})

	t.Run("other owner", func(t *testing.T) {
		stranger := createTestUser(t, env.repos)
		body := jsonBody(t, models.UploadCompleteRequest{SessionKey: init.SessionKey, EncryptedKey: "k"})
		rec := httptest.NewRecorder()
		handler(rec, authed(httptest.NewRequest("POST", "/api/upload/complete", body), stranger))

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		wantErrorCode(t, rec.Body, "FORBIDDEN")
	})
}

func TestUploadCompleteIdempotent(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, config.MinChunkSize)

	if rec := confirmChunk(t, env, init.SessionKey, 0, chunkPayload(config.MinChunkSize, 0x01)); rec.Code != http.StatusOK {
		t.Fatalf("chunk confirm status = %d", rec.Code)
	}

	handler := UploadCompleteHandler(env.repos, env.blobs)
	for i := 0; i < 2; i++ {
		body := jsonBody(t, models.UploadCompleteRequest{SessionKey: init.SessionKey, EncryptedKey: "k"})
		rec := httptest.NewRecorder()
		handler(rec, authed(httptest.NewRequest("POST", "/api/upload/complete", body), user))

		if rec.Code != http.StatusOK {
			t.Fatalf("complete call %d status = %d: %s", i+1, rec.Code, rec.Body.String())
		}
		var resp models.UploadCompleteResponse
		decodeBody(t, rec.Body, &resp)
		if resp.ShareID != init.ShareID {
			t.Errorf("call %d share ID = %q, want %q", i+1, resp.ShareID, init.ShareID)
		}
	}
}

func TestUploadStatus(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	init := initiateUpload(t, env, user, 600000)

	if rec := confirmChunk(t, env, init.SessionKey, 1, chunkPayload(config.MinChunkSize, 0x02)); rec.Code != http.StatusOK {
		t.Fatalf("chunk confirm status = %d", rec.Code)
	}

	handler := UploadStatusHandler(env.repos)
	req := httptest.NewRequest("GET", fmt.Sprintf("/api/upload/status/%s", init.SessionKey), nil)
	req.SetPathValue("sessionKey", init.SessionKey)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.UploadStatusResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Status != models.SessionStatusActive {
		t.Errorf("session status = %q, want active", resp.Status)
	}
	if resp.UploadedChunks != 1 || resp.ChunkCount != 3 {
		t.Errorf("progress = %d/%d, want 1/3", resp.UploadedChunks, resp.ChunkCount)
	}
	if len(resp.MissingChunks) != 2 || resp.MissingChunks[0] != 0 || resp.MissingChunks[1] != 2 {
		t.Errorf("missing chunks = %v, want [0 2]", resp.MissingChunks)
	}
}

func TestUploadStatusUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	handler := UploadStatusHandler(env.repos)
	req := httptest.NewRequest("GET", "/api/upload/status/bogus", nil)
	req.SetPathValue("sessionKey", "bogus")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	wantErrorCode(t, rec.Body, "SESSION_NOT_FOUND")
}
