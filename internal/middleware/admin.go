package middleware

import (
	"net/http"
	"slices"

	"github.com/orgadmin/backend/internal/contextkeys"
	"github.com/orgadmin/backend/internal/handler"
)

// RequireRole lets the request through only for the listed staff roles.
// Must be used after Auth.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, role := contextkeys.Staff(r.Context())
			if !slices.Contains(roles, role) {
				handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
