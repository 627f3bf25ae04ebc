package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS answers preflights and sets Access-Control headers for the read-only
// API. With no configured origins every origin is accepted; otherwise
// requests from other origins are rejected with 403.
func CORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			switch {
			case len(origins) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin == "":
				// Same-origin or non-browser client.
			case isOriginAllowed(origin, origins):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			default:
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed matches origin against CORS_ORIGINS entries. An entry is
// either a full origin ("https://app.example.com:8443") or a bare host,
// with or without port.
func isOriginAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	full := strings.ToLower(u.Scheme + "://" + u.Host)
	host := strings.ToLower(u.Host)
	hostname := strings.ToLower(u.Hostname())

	for _, entry := range allowed {
		entry = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(entry)), "/")
		if strings.Contains(entry, "://") {
			if entry == full {
				return true
			}
			continue
		}
		if entry == host || entry == hostname {
			return true
		}
	}
	return false
}
