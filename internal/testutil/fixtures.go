package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/storage"
	"github.com/securepass/securepass/internal/utils"
)

// SampleUser returns a test user with default values.
func SampleUser() *models.User {
	return &models.User{
		ID:        uuid.NewString(),
		Subject:   "idp|" + uuid.NewString(),
		Email:     "owner@example.com",
		Plan:      models.PlanFree,
		CreatedAt: time.Now(),
	}
}

// SampleFile returns a completed file record owned by userID.
func SampleFile(userID string) *models.File {
	now := time.Now()
	id := uuid.NewString()
	shareID, _ := utils.GenerateSecret()

	return &models.File{
		ID:             id,
		ShareID:        shareID,
		Filename:       "report.pdf.enc",
		Size:           4096,
		MimeType:       "application/pdf",
		EncryptedKey:   "wrapped-key-base64",
		BlobKey:        storage.FileKey(id),
		UploadStatus:   models.FileStatusCompleted,
		ChunkCount:     1,
		UploadedChunks: 1,
		CreatedAt:      now,
		ExpiresAt:      now.Add(72 * time.Hour),
		MaxDownloads:   5,
		UserID:         userID,
	}
}

// SampleUploadingFile returns a file record still mid-upload.
func SampleUploadingFile(userID string) *models.File {
	file := SampleFile(userID)
	file.UploadStatus = models.FileStatusUploading
	file.EncryptedKey = ""
	file.BlobKey = ""
	file.ChunkCount = 4
	file.UploadedChunks = 0
	return file
}

// SampleSession returns an active upload session for the given file.
func SampleSession(fileID string) *models.UploadSession {
	now := time.Now()
	key, _ := utils.GenerateSessionKey()

	return &models.UploadSession{
		SessionKey:  key,
		FileID:      fileID,
		Status:      models.SessionStatusActive,
		ChunkSize:   1024,
		TotalChunks: 4,
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

// SampleRequest returns a pending access request for the given file.
func SampleRequest(fileID string) *models.AccessRequest {
	requestID, _ := utils.GenerateSecret()
	reason := "quarterly numbers"

	return &models.AccessRequest{
		RequestID: requestID,
		FileID:    fileID,
		Reason:    &reason,
		Status:    models.RequestStatusPending,
		IPHash:    utils.HashIP("203.0.113.7", "test-salt"),
		CreatedAt: time.Now(),
	}
}
