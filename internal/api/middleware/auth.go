package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

type contextKey string

const (
	userKey      contextKey = "user"
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "request_id"
)

// UserGetter loads users by id.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// JWTOrSessionAuth accepts a Bearer token or the web session cookie. The user
// is reloaded on every request so role changes and deactivation apply
// immediately.
func JWTOrSessionAuth(jwtService *auth.JWTService, sessions *session.Store, users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var userID string

			if token, ok := bearerToken(r); ok {
				claims, err := jwtService.ValidateToken(token)
				if err != nil {
					log.Printf("JWT auth failed for %s: %v", r.RemoteAddr, err)
					respond.Fail(w, respond.ErrInvalidToken)
					return
				}
				userID = claims.UserID
				ctx = context.WithValue(ctx, claimsKey, claims)
			} else if sessions != nil {
				if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
					if sess, ok := sessions.Get(cookie.Value); ok {
						userID = sess.UserID
					}
				}
			}

			if userID == "" {
				respond.Fail(w, respond.ErrInvalidToken)
				return
			}

			user, err := users.GetByID(ctx, userID)
			if err != nil {
				respond.Internal(w, "load user", err)
				return
			}
			if user == nil || !user.Active {
				respond.Fail(w, respond.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUser returns the authenticated user or nil.
func GetUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// GetUserID returns the authenticated user's id.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

// GetUsername returns the authenticated user's name.
func GetUsername(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Username
	}
	return ""
}

// GetRole returns the authenticated user's role.
func GetRole(ctx context.Context) models.Role {
	if u := GetUser(ctx); u != nil {
		return u.Role
	}
	return ""
}

// GetClaims returns the JWT claims, nil for session requests.
func GetClaims(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}
