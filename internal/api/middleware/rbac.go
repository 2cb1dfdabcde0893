package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// RequireRole allows the listed roles. Admins are always allowed.
func RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if role == models.RoleAdmin || (role != "" && slices.Contains(allowed, role)) {
				next.ServeHTTP(w, r)
				return
			}
			respond.Fail(w, respond.ErrForbidden)
		})
	}
}

// RequireAdmin is shorthand for RequireRole(RoleAdmin).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// RequirePermission allows users holding perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil || !user.HasPermission(perm) {
				respond.Fail(w, respond.Forbidden("missing permission "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminOrSelf allows admins and the user named by the {id} parameter.
func RequireAdminOrSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user != nil && (user.IsAdmin() || chi.URLParam(r, "id") == user.ID) {
			next.ServeHTTP(w, r)
			return
		}
		respond.Fail(w, respond.ErrForbidden)
	})
}
