package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securepass/securepass/internal/auth"
	"github.com/securepass/securepass/internal/repository/mock"
)

func TestRequireAuth_ValidToken(t *testing.T) {
	verifier := auth.NewStaticVerifier()
	verifier.AddToken("good-token", auth.Identity{Subject: "idp|alice", Email: "alice@example.com"})
	users := mock.NewUserRepository()

	var gotSubject string
	handler := RequireAuth(verifier, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			t.Fatal("expected user in context")
		}
		gotSubject = user.Subject
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/files/recent", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotSubject != "idp|alice" {
		t.Errorf("subject = %q, want %q", gotSubject, "idp|alice")
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	verifier := auth.NewStaticVerifier()
	users := mock.NewUserRepository()

	handler := RequireAuth(verifier, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/files/recent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	verifier := auth.NewStaticVerifier()
	users := mock.NewUserRepository()

	handler := RequireAuth(verifier, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/files/recent", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
