package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuthMiddleware requires "Authorization: Bearer <token>" on /v1/ routes.
func TokenAuthMiddleware(token string, next http.Handler) http.Handler {
	expected := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "unauthorized",
			})
			return
		}
		given := []byte(strings.TrimSpace(auth[len(prefix):]))
		if len(expected) == 0 || subtle.ConstantTimeCompare(given, expected) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
