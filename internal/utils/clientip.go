package utils

import (
	"net"
	"net/http"
	"strings"
)

// isTrustedProxyIP checks whether ipStr is in the trusted proxy list.
// trustedProxies is a comma-separated string of IPs and CIDR ranges,
// e.g. "127.0.0.1,10.0.0.0/8".
func isTrustedProxyIP(ipStr string, trustedProxies string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, proxy := range strings.Split(trustedProxies, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			_, ipNet, err := net.ParseCIDR(proxy)
			if err == nil && ipNet.Contains(ip) {
				return true
			}
		} else {
			proxyIP := net.ParseIP(proxy)
			if proxyIP != nil && ip.Equal(proxyIP) {
				return true
			}
		}
	}

	return false
}

// ExtractIP extracts the IP address from a "host:port" string.
// If no port is present, returns the input as-is.
func ExtractIP(addr string) string {
	// IPv6 with port: [::1]:8080
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]:"); idx != -1 {
			return addr[1:idx]
		}
		return strings.Trim(addr, "[]")
	}

	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		// Multiple colons without brackets means bare IPv6
		if strings.Count(addr, ":") > 1 {
			return addr
		}
		return addr[:idx]
	}

	return addr
}

// ClientIP extracts the client IP from the request. Proxy headers
// (X-Forwarded-For, X-Real-IP) are honored only when the immediate
// connection source is in the trusted proxy list, so an untrusted client
// cannot spoof its address.
func ClientIP(r *http.Request, trustedProxyIPs string) string {
	remoteIP := ExtractIP(r.RemoteAddr)

	if !isTrustedProxyIP(remoteIP, trustedProxyIPs) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return remoteIP
}
