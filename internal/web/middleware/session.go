// Package middleware holds the web UI's session, permission and onboarding
// middleware.
package middleware

import (
	"context"
	"log"
	"net/http"

	apimw "github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

type contextKey string

const sessionKey contextKey = "session"

// UserGetter loads users by id.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// OnboardingChecker reports whether onboarding was completed.
type OnboardingChecker interface {
	Onboarded(ctx context.Context) (bool, error)
}

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSession returns the request's session or nil.
func GetSession(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey).(*session.Session)
	return s
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// RequireSession redirects to /login unless the request carries a live
// session of an active user. The user is loaded on every request so
// deactivation and role changes apply at once.
func RequireSession(store *session.Store, users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			sess, ok := store.Get(cookie.Value)
			if !ok {
				ClearSessionCookie(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				log.Printf("load session user error: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if user == nil || !user.Active {
				store.Delete(sess.ID)
				ClearSessionCookie(w)
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			ctx := WithSession(r.Context(), sess)
			ctx = apimw.WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole ensures the user has at least the given role.
// Must be used after RequireSession.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := apimw.GetUser(r.Context())
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			if !hasRole(user.Role, role) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission ensures the user holds perm.
// Must be used after RequireSession.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := apimw.GetUser(r.Context())
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			if !user.HasPermission(perm) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOnboarding redirects to /onboarding until onboarding is complete.
func RequireOnboarding(checker OnboardingChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done, err := checker.Onboarded(r.Context())
			if err != nil {
				log.Printf("onboarding check error: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if !done {
				http.Redirect(w, r, "/onboarding", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hasRole checks if userRole meets or exceeds requiredRole
// Role hierarchy: admin > operator > viewer
func hasRole(userRole, requiredRole models.Role) bool {
	roleLevel := map[models.Role]int{
		models.RoleViewer:   1,
		models.RoleOperator: 2,
		models.RoleAdmin:    3,
	}

	userLevel, ok := roleLevel[userRole]
	if !ok {
		return false
	}
	requiredLevel, ok := roleLevel[requiredRole]
	if !ok {
		return false
	}
	return userLevel >= requiredLevel
}
