package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/royal-restaurant/api/internal/auth"
)

// AdminTokenHeader carries the static admin token on panel requests.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdmin gates a route group behind the static admin token. The
// compare is constant-time and the rejection is generic: callers learn
// nothing about why the token was refused.
func RequireAdmin(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.TokenEqual(r.Header.Get(AdminTokenHeader), adminToken) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
