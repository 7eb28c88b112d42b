package middleware

import (
	"net/http"

	"github.com/gosuda/boardsync/internal/auth"
)

// Roles Auth stores in the request context. A token without a role claim is
// a member.
const (
	RoleAdmin  = auth.RoleAdmin
	RoleMember = "member"
)

// RequireAdmin admits requests that Auth resolved to the admin role: a JWT
// with role=admin, the single-user token or the admin API key. It must be
// chained after Auth.
//
// Returns 401 Unauthorized when no role is in context and 403 Forbidden for
// any role other than admin.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || role == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"authentication required"}`, http.StatusUnauthorized)
				return
			}

			if role != RoleAdmin {
				http.Error(w, `{"title":"Forbidden","status":403,"detail":"insufficient permissions"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
