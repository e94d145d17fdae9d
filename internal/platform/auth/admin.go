package auth

import (
	"net/http"
	"strings"

	"github.com/aaditx/vibeanime/internal/platform/api"
	"github.com/aaditx/vibeanime/internal/platform/httpserver"
)

const RoleAdmin = "admin"

// RequireRole admits requests whose token carried role, compared case
// insensitively. It must run after RequireUser.
func RequireRole(role string) func(next http.Handler) http.Handler {
	want := strings.ToLower(role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ := RoleFromContext(r.Context())
			if strings.ToLower(strings.TrimSpace(got)) != want {
				api.Forbidden(w, "FORBIDDEN", role+" role required", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards operator endpoints such as cache invalidation.
func RequireAdmin(next http.Handler) http.Handler { return RequireRole(RoleAdmin)(next) }
