package middleware

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"ynabmirror/internal/shared/auth"
)

// APIKey requires "Authorization: Bearer <key>" where key matches the
// bcrypt hash. An empty hash disables the check.
func APIKey(hash string) func(http.Handler) http.Handler {
	v := &keyVerifier{hash: hash}
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || key == "" || !v.verify(key) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ynab-mirror"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyVerifier remembers digests of keys that already passed bcrypt, which
// costs tens of milliseconds per comparison.
type keyVerifier struct {
	hash string
	ok   sync.Map // [32]byte -> struct{}
}

func (v *keyVerifier) verify(key string) bool {
	sum := sha256.Sum256([]byte(key))
	if _, hit := v.ok.Load(sum); hit {
		return true
	}
	if auth.VerifyAPIKey(v.hash, key) != nil {
		return false
	}
	v.ok.Store(sum, struct{}{})
	return true
}
