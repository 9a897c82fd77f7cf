package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/securepass/securepass/internal/models"
)

func TestFileInfo(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	stranger := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, owner)
	handler := FileInfoHandler(env.repos)

	infoReq := func(shareID string, user *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/files/"+shareID+"/info", nil)
		req.SetPathValue("shareID", shareID)
		if user != nil {
			req = authed(req, user)
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	t.Run("owner", func(t *testing.T) {
		rec := infoReq(file.ShareID, owner)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp models.FileInfoResponse
		decodeBody(t, rec.Body, &resp)
		if resp.FileID != file.ID || resp.ShareID != file.ShareID {
			t.Errorf("ids = %q/%q", resp.FileID, resp.ShareID)
		}
		if resp.UploadStatus != models.FileStatusCompleted {
			t.Errorf("status = %q, want completed", resp.UploadStatus)
		}
		if resp.MaxDownloads != file.MaxDownloads {
			t.Errorf("max downloads = %d, want %d", resp.MaxDownloads, file.MaxDownloads)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := infoReq(file.ShareID, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		rec := infoReq(file.ShareID, stranger)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		wantErrorCode(t, rec.Body, "FORBIDDEN")
	})

	t.Run("unknown share", func(t *testing.T) {
		rec := infoReq("nosuchshare1", owner)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		wantErrorCode(t, rec.Body, "FILE_NOT_FOUND")
	})
}

func TestFileRequests(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, owner)

	older := env.createPendingRequest(t, file.ID)
	newer := env.createApprovedRequest(t, file.ID)

	handler := FileRequestsHandler(env.repos)
	req := authed(httptest.NewRequest("GET", "/api/files/"+file.ShareID+"/requests", nil), owner)
	req.SetPathValue("shareID", file.ShareID)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var items []models.RequestListItem
	decodeBody(t, rec.Body, &items)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].RequestID != newer.RequestID || items[1].RequestID != older.RequestID {
		t.Errorf("order = [%q %q], want newest first", items[0].RequestID, items[1].RequestID)
	}
	if items[0].Status != models.RequestStatusApproved {
		t.Errorf("newest status = %q, want approved", items[0].Status)
	}
	if items[1].Reason == nil {
		t.Error("reason missing on pending request")
	}
}

func TestRecentFiles(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	other := createTestUser(t, env.repos)

	for i := 0; i < 3; i++ {
		env.createFile(t, owner, func(f *models.File) {
			f.Filename = fmt.Sprintf("file-%d.enc", i)
		})
	}
	env.createCompletedFile(t, other)

	handler := RecentFilesHandler(env.repos)
	list := func(query string) models.RecentFilesResponse {
		t.Helper()
		req := authed(httptest.NewRequest("GET", "/api/files/recent"+query, nil), owner)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp models.RecentFilesResponse
		decodeBody(t, rec.Body, &resp)
		return resp
	}

	resp := list("")
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
	if len(resp.Files) != 3 {
		t.Fatalf("files = %d, want 3", len(resp.Files))
	}
	// Only the caller's files appear
	seen := make(map[string]bool, len(resp.Files))
	for _, f := range resp.Files {
		seen[f.Filename] = true
	}
	for i := 0; i < 3; i++ {
		if name := fmt.Sprintf("file-%d.enc", i); !seen[name] {
			t.Errorf("listing missing %s", name)
		}
	}

	paged := list("?limit=2&offset=2")
	if paged.Total != 3 || len(paged.Files) != 1 {
		t.Errorf("page = %d of %d, want 1 of 3", len(paged.Files), paged.Total)
	}
	if paged.Limit != 2 || paged.Offset != 2 {
		t.Errorf("echo = limit %d offset %d", paged.Limit, paged.Offset)
	}

	// Out-of-range knobs fall back to the defaults
	clamped := list("?limit=5000&offset=-3")
	if clamped.Limit != 20 || clamped.Offset != 0 {
		t.Errorf("clamped = limit %d offset %d, want 20/0", clamped.Limit, clamped.Offset)
	}
}

func TestUpdateFile(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, owner)
	handler := UpdateFileHandler(env.repos)

	patch := func(body models.UpdateFileRequest) *httptest.ResponseRecorder {
		t.Helper()
		req := authed(httptest.NewRequest("PATCH", "/api/files/"+file.ShareID, jsonBody(t, body)), owner)
		req.SetPathValue("shareID", file.ShareID)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	truth, falsity := true, false

	rec := patch(models.UpdateFileRequest{BlocksRequests: &truth})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.FileInfoResponse
	decodeBody(t, rec.Body, &resp)
	if !resp.BlocksRequests || resp.BlocksDownloads {
		t.Errorf("gates = %v/%v, want true/false", resp.BlocksRequests, resp.BlocksDownloads)
	}

	// The gates only close; false never reopens one
	rec = patch(models.UpdateFileRequest{BlocksRequests: &falsity, BlocksDownloads: &truth})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec.Body, &resp)
	if !resp.BlocksRequests || !resp.BlocksDownloads {
		t.Errorf("gates = %v/%v, want both closed", resp.BlocksRequests, resp.BlocksDownloads)
	}
}

func TestUpdateFileExpired(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	file := env.createFile(t, owner, func(f *models.File) {
		f.ExpiresAt = time.Now().Add(-time.Hour)
	})

	truth := true
	handler := UpdateFileHandler(env.repos)
	req := authed(httptest.NewRequest("PATCH", "/api/files/"+file.ShareID,
		jsonBody(t, models.UpdateFileRequest{BlocksRequests: &truth})), owner)
	req.SetPathValue("shareID", file.ShareID)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", rec.Code)
	}
	wantErrorCode(t, rec.Body, "FILE_EXPIRED")

	stored, err := env.repos.Files.GetByID(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("failed to reload file: %v", err)
	}
	if stored.BlocksRequests {
		t.Error("expired file gates should be untouched")
	}
}
