package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the shared-secret header partners must send.
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose shared secret does not match before the body
// is touched. An empty configured key disables the route entirely rather
// than leaving it open.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, "relay auth disabled", http.StatusUnauthorized)
				return
			}
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
