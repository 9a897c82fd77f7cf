package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/securepass/securepass/internal/auth"
	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/repository"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated user stored by RequireAuth,
// or nil when the request was not authenticated.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// WithUser returns a context carrying the given user, as if RequireAuth had
// verified it.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// RequireAuth verifies the bearer token on owner-facing endpoints and stores
// the resolved user in the request context. The user row is upserted on each
// request so identities created at the provider need no separate signup step.
func RequireAuth(verifier auth.Verifier, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				authError(w, "Missing bearer token")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				slog.Debug("token verification failed", "error", err, "path", r.URL.Path)
				authError(w, "Invalid or expired token")
				return
			}

			user := &models.User{Subject: identity.Subject, Email: identity.Email}
			if err := users.UpsertBySubject(r.Context(), user); err != nil {
				slog.Error("failed to upsert user", "error", err, "subject", identity.Subject)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(models.ErrorResponse{
					Error: "Internal server error",
					Code:  "INTERNAL_ERROR",
				})
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func authError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}
