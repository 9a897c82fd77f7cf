package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/securepass/securepass/internal/models"
)

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	env.createCompletedFile(t, user)

	handler := HealthHandler(env.repos, env.blobs, time.Now().Add(-time.Minute))
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp models.HealthResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Status != "healthy" || resp.Database != "ok" || resp.BlobStore != "ok" {
		t.Errorf("report = %q/%q/%q", resp.Status, resp.Database, resp.BlobStore)
	}
	if resp.TotalFiles != 1 {
		t.Errorf("total files = %d, want 1", resp.TotalFiles)
	}
	if resp.UptimeSeconds < 60 {
		t.Errorf("uptime = %d, want at least 60", resp.UptimeSeconds)
	}
}

func TestHealthHandlerDegradedBlobStore(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.HealthError = errors.New("bucket unreachable")

	handler := HealthHandler(env.repos, env.blobs, time.Now())
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	// A blob outage degrades the report but keeps the API alive
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp models.HealthResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Status != "degraded" || resp.BlobStore != "unreachable" {
		t.Errorf("report = %q/%q, want degraded/unreachable", resp.Status, resp.BlobStore)
	}
}

func TestHealthHandlerDatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	env.repos.Cleanup()

	handler := HealthHandler(env.repos, env.blobs, time.Now())
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp models.HealthResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Status != "unhealthy" || resp.Database != "unreachable" {
		t.Errorf("report = %q/%q, want unhealthy/unreachable", resp.Status, resp.Database)
	}
}
