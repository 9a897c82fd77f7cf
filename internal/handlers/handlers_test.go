package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/securepass/securepass/internal/billing"
	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/middleware"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
	storagemock "github.com/securepass/securepass/internal/storage/mock"
	"github.com/securepass/securepass/internal/testutil"
)

// testEnv bundles the dependencies handlers are built from.
type testEnv struct {
	repos  *repository.Repositories
	blobs  *storagemock.BlobStore
	cfg    *config.Config
	limits *billing.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testutil.SetupTestConfig(t)
	return &testEnv{
		repos:  testutil.SetupTestDB(t),
		blobs:  storagemock.New(),
		cfg:    cfg,
		limits: billing.NewService(cfg),
	}
}

func createTestUser(t *testing.T, repos *repository.Repositories) *models.User {
	t.Helper()

	user := &models.User{
		Subject: "idp|" + uuid.NewString(),
		Email:   "owner@example.com",
	}
	if err := repos.Users.UpsertBySubject(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// createCompletedFile inserts a completed file owned by user and seeds its
// assembled blob.
func (env *testEnv) createCompletedFile(t *testing.T, user *models.User) *models.File {
	t.Helper()
	return env.createFile(t, user, nil)
}

// createFile inserts a completed file fixture, letting the caller reshape it
// before the insert.
func (env *testEnv) createFile(t *testing.T, user *models.User, mutate func(*models.File)) *models.File {
	t.Helper()

	file := testutil.SampleFile(user.ID)
	if mutate != nil {
		mutate(file)
	}
	testutil.InsertCompletedFile(t, env.repos.Files, file)

	if file.BlobKey != "" {
		data := bytes.Repeat([]byte{0xEC}, int(file.Size))
		if err := env.blobs.Put(context.Background(), file.BlobKey, bytes.NewReader(data), file.Size); err != nil {
			t.Fatalf("failed to seed blob: %v", err)
		}
	}
	return file
}

// createApprovedRequest inserts an access request for the file and approves it.
func (env *testEnv) createApprovedRequest(t *testing.T, fileID string) *models.AccessRequest {
	t.Helper()

	request := env.createPendingRequest(t, fileID)
	decided, err := env.repos.Requests.Decide(context.Background(), request.RequestID, models.RequestStatusApproved, request.CreatedAt)
	if err != nil || !decided {
		t.Fatalf("failed to approve request: decided=%v err=%v", decided, err)
	}
	request.Status = models.RequestStatusApproved
	return request
}

func (env *testEnv) createPendingRequest(t *testing.T, fileID string) *models.AccessRequest {
	t.Helper()

	request := testutil.SampleRequest(fileID)
	// Distinct hash per request so fixtures never trip the pending dedup index
	request.IPHash = "hash-" + uuid.NewString()
	if err := env.repos.Requests.Create(context.Background(), request); err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return request
}

// authed attaches a verified user to the request context the way RequireAuth
// would.
func authed(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), user))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func decodeBody(t *testing.T, body *bytes.Buffer, v any) {
	t.Helper()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func wantErrorCode(t *testing.T, body *bytes.Buffer, code string) {
	t.Helper()

	var resp models.ErrorResponse
	decodeBody(t, body, &resp)
	if resp.Code != code {
		t.Errorf("error code = %q, want %q", resp.Code, code)
	}
}
