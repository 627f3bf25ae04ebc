package middleware

import (
	"net"
	"net/http"
	"strings"
)

// SecurityHeaders sets response headers suited to a JSON-only API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// AllowedHosts rejects requests whose Host header is not in hosts. An empty
// list allows every host.
func AllowedHosts(hosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsHostAllowed(r.Host, hosts) {
				http.Error(w, "Invalid host", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsHostAllowed validates a host against the allowed hosts list.
// Returns true if no allowed hosts are configured. Ports are ignored when
// only one side carries one.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	host = strings.ToLower(strings.TrimSpace(host))
	hostWithoutPort := stripPort(host)

	for _, allowedHost := range allowedHosts {
		allowedHost = strings.ToLower(strings.TrimSpace(allowedHost))
		if allowedHost == "*" {
			return true
		}
		if host == allowedHost || hostWithoutPort == stripPort(allowedHost) {
			return true
		}
	}

	return false
}

// stripPort drops an optional port and IPv6 brackets.
func stripPort(h string) string {
	if name, _, err := net.SplitHostPort(h); err == nil {
		return name
	}
	return strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
}
