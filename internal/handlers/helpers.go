// Package handlers implements the HTTP API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/securepass/securepass/internal/models"
	"github.com/securepass/securepass/internal/utils"
)

const trustedProxies = "127.0.0.1,::1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"

// sendError writes a JSON error response with the given message, code, and status
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendJSON writes a JSON response with the given status
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// setNoStoreHeaders disables caching. Responses carrying tokens, keys, or
// ciphertext must never land in a shared cache.
func setNoStoreHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// getClientIP extracts the client IP respecting trusted reverse proxies.
func getClientIP(r *http.Request) string {
	return utils.ClientIP(r, trustedProxies)
}
