package middleware

import (
	"net/http"

	"github.com/securepass/securepass/internal/utils"
)

// defaultTrustedProxies covers RFC1918 ranges plus localhost, matching the
// usual reverse-proxy deployment in front of the API.
const defaultTrustedProxies = "127.0.0.1,::1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"

// getClientIP returns the client IP address with default trusted proxy settings.
func getClientIP(r *http.Request) string {
	return utils.ClientIP(r, defaultTrustedProxies)
}
