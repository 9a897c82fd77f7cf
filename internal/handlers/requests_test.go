package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/testutil"
)

// postRequest drives the create-request handler for a share ID.
func postRequest(t *testing.T, env *testEnv, shareID, reason string) *httptest.ResponseRecorder {
	t.Helper()

	handler := CreateRequestHandler(env.repos, env.cfg)
	body := jsonBody(t, models.CreateAccessRequest{ShareID: shareID, Reason: reason})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("POST", "/api/requests", body))
	return rec
}

func TestCreateRequest(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, user)

	rec := postRequest(t, env, file.ShareID, "quarterly numbers")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp models.AccessRequestResponse
	decodeBody(t, rec.Body, &resp)
	if resp.RequestID == "" {
		t.Error("expected a request token")
	}
	if resp.Status != models.RequestStatusPending {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.AlreadyExists {
		t.Error("fresh request reported as existing")
	}

	stored, err := env.repos.Requests.GetByRequestID(context.Background(), resp.RequestID)
	if err != nil {
		t.Fatalf("request row missing: %v", err)
	}
	if stored.Reason == nil || *stored.Reason != "quarterly numbers" {
		t.Errorf("reason not stored: %v", stored.Reason)
	}
}

func TestCreateRequestDeduplicatesPerRequester(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, user)

	first := postRequest(t, env, file.ShareID, "")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}
	var created models.AccessRequestResponse
	decodeBody(t, first.Body, &created)

	// Same requester asking again gets the pending token back, not a new row
	second := postRequest(t, env, file.ShareID, "")
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", second.Code)
	}
	var existing models.AccessRequestResponse
	decodeBody(t, second.Body, &existing)
	if !existing.AlreadyExists {
		t.Error("expected already_exists on the duplicate")
	}
	if existing.RequestID != created.RequestID {
		t.Errorf("duplicate returned token %q, want %q", existing.RequestID, created.RequestID)
	}
}

func TestCreateRequestGates(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)

	notReady := testutil.SampleUploadingFile(user.ID)
	if err := env.repos.Files.Create(context.Background(), notReady); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	expired := env.createFile(t, user, func(f *models.File) {
		f.ExpiresAt = time.Now().Add(-time.Hour)
	})

	blocked := env.createCompletedFile(t, user)
	if err := env.repos.Files.UpdateBlocks(context.Background(), blocked.ID, true, false); err != nil {
		t.Fatalf("failed to block requests: %v", err)
	}

	exhausted := env.createFile(t, user, func(f *models.File) {
		f.MaxDownloads = 1
	})
	spent := env.createApprovedRequest(t, exhausted.ID)
	allowed, err := env.repos.Downloads.Authorize(context.Background(), exhausted.ID, spent.RequestID, spent.IPHash, 1)
	if err != nil || !allowed {
		t.Fatalf("failed to spend quota: allowed=%v err=%v", allowed, err)
	}

	tests := []struct {
		name       string
		shareID    string
		wantStatus int
		wantCode   string
	}{
		{"unknown share", "nosuchshare1", http.StatusNotFound, "FILE_NOT_FOUND"},
		{"upload not finished", notReady.ShareID, http.StatusBadRequest, "FILE_NOT_READY"},
		{"expired", expired.ShareID, http.StatusGone, "FILE_EXPIRED"},
		{"requests blocked", blocked.ShareID, http.StatusGone, "REQUESTS_BLOCKED"},
		{"quota exhausted", exhausted.ShareID, http.StatusGone, "QUOTA_EXHAUSTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRequest(t, env, tt.shareID, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			wantErrorCode(t, rec.Body, tt.wantCode)
		})
	}
}

func TestRequestStatus(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, user)
	handler := RequestStatusHandler(env.repos)

	statusFor := func(requestID string) models.RequestStatusResponse {
		t.Helper()
		req := httptest.NewRequest("GET", "/api/requests/"+requestID, nil)
		req.SetPathValue("requestID", requestID)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp models.RequestStatusResponse
		decodeBody(t, rec.Body, &resp)
		return resp
	}

	pending := env.createPendingRequest(t, file.ID)
	resp := statusFor(pending.RequestID)
	if resp.Status != models.RequestStatusPending {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.DownloadAvailable {
		t.Error("pending request reports download available")
	}
	if resp.Filename != file.Filename || resp.Size != file.Size {
		t.Errorf("projection = %q/%d, want %q/%d", resp.Filename, resp.Size, file.Filename, file.Size)
	}

	approved := env.createApprovedRequest(t, file.ID)
	resp = statusFor(approved.RequestID)
	if resp.Status != models.RequestStatusApproved {
		t.Errorf("status = %q, want approved", resp.Status)
	}
	if !resp.DownloadAvailable {
		t.Error("approved request should report download available")
	}
	if resp.ApprovedAt == nil {
		t.Error("approved_at missing")
	}

	// Closing the download gate flips availability without touching status
	if err := env.repos.Files.UpdateBlocks(context.Background(), file.ID, false, true); err != nil {
		t.Fatalf("failed to block downloads: %v", err)
	}
	resp = statusFor(approved.RequestID)
	if resp.Status != models.RequestStatusApproved {
		t.Errorf("status = %q, want approved", resp.Status)
	}
	if resp.DownloadAvailable {
		t.Error("blocked file should not report download available")
	}
}

func TestRequestStatusUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	handler := RequestStatusHandler(env.repos)
	req := httptest.NewRequest("GET", "/api/requests/bogus", nil)
	req.SetPathValue("requestID", "bogus")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	wantErrorCode(t, rec.Body, "REQUEST_NOT_FOUND")
}

// decide drives the approve or reject handler as the given user.
func decide(t *testing.T, env *testEnv, user *models.User, requestID, action string) *httptest.ResponseRecorder {
	t.Helper()

	var handler http.HandlerFunc
	if action == "approve" {
		handler = ApproveRequestHandler(env.repos)
	} else {
		handler = RejectRequestHandler(env.repos)
	}

	req := httptest.NewRequest("POST", "/api/requests/"+requestID+"/"+action, nil)
	req.SetPathValue("requestID", requestID)
	if user != nil {
		req = authed(req, user)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestDecideRequest(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, user)

	approve := env.createPendingRequest(t, file.ID)
	rec := decide(t, env, user, approve.RequestID, "approve")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.DecisionResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Status != models.RequestStatusApproved {
		t.Errorf("decision status = %q, want approved", resp.Status)
	}

	stored, err := env.repos.Requests.GetByRequestID(context.Background(), approve.RequestID)
	if err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if stored.Status != models.RequestStatusApproved || stored.ApprovedAt == nil {
		t.Errorf("stored = %q approved_at=%v", stored.Status, stored.ApprovedAt)
	}

	reject := env.createPendingRequest(t, file.ID)
	rec = decide(t, env, user, reject.RequestID, "reject")
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d: %s", rec.Code, rec.Body.String())
	}
	stored, err = env.repos.Requests.GetByRequestID(context.Background(), reject.RequestID)
	if err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if stored.Status != models.RequestStatusRejected || stored.RejectedAt == nil {
		t.Errorf("stored = %q rejected_at=%v", stored.Status, stored.RejectedAt)
	}
}

func TestDecideRequestOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, user)
	request := env.createPendingRequest(t, file.ID)

	if rec := decide(t, env, user, request.RequestID, "approve"); rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d", rec.Code)
	}

	// The losing decision reports which status stuck
	rec := decide(t, env, user, request.RequestID, "reject")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second decision status = %d, want 400", rec.Code)
	}
	var resp models.ErrorResponse
	decodeBody(t, rec.Body, &resp)
	if resp.Code != "REQUEST_ALREADY_DECIDED" {
		t.Errorf("code = %q, want REQUEST_ALREADY_DECIDED", resp.Code)
	}
	if resp.Error != "Request is already approved" {
		t.Errorf("message = %q, want %q", resp.Error, "Request is already approved")
	}

	stored, err := env.repos.Requests.GetByRequestID(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if stored.Status != models.RequestStatusApproved {
		t.Errorf("status = %q, want approved to stand", stored.Status)
	}
}

func TestDecideRequestExpiredFile(t *testing.T) {
	env := newTestEnv(t)
	user := createTestUser(t, env.repos)
	file := env.createFile(t, user, func(f *models.File) {
		f.ExpiresAt = time.Now().Add(-time.Hour)
	})
	request := env.createPendingRequest(t, file.ID)

	// Approval is off the table for an expired file
	rec := decide(t, env, user, request.RequestID, "approve")
	if rec.Code != http.StatusGone {
		t.Fatalf("approve status = %d, want 410", rec.Code)
	}
	wantErrorCode(t, rec.Body, "FILE_EXPIRED")

	// Rejecting the stale request still works
	rec = decide(t, env, user, request.RequestID, "reject")
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d: %s", rec.Code, rec.Body.String())
	}
	stored, err := env.repos.Requests.GetByRequestID(context.Background(), request.RequestID)
	if err != nil {
		t.Fatalf("failed to reload request: %v", err)
	}
	if stored.Status != models.RequestStatusRejected {
		t.Errorf("status = %q, want rejected", stored.Status)
	}
}

func TestDecideRequestAccess(t *testing.T) {
	env := newTestEnv(t)
	owner := createTestUser(t, env.repos)
	stranger := createTestUser(t, env.repos)
	file := env.createCompletedFile(t, owner)
	request := env.createPendingRequest(t, file.ID)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := decide(t, env, nil, request.RequestID, "approve")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		rec := decide(t, env, stranger, request.RequestID, "approve")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		wantErrorCode(t, rec.Body, "FORBIDDEN")
	})

	t.Run("request stays pending", func(t *testing.T) {
		stored, err := env.repos.Requests.GetByRequestID(context.Background(), request.RequestID)
		if err != nil {
			t.Fatalf("failed to reload request: %v", err)
		}
		if stored.Status != models.RequestStatusPending {
			t.Errorf("status = %q, want pending", stored.Status)
		}
	})
}
