package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

// Login failures.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account temporarily locked")
	ErrInactive           = errors.New("account is deactivated")
)

// Authenticator checks username and password for both the API and the web
// login form.
type Authenticator struct {
	users   storage.UserRepository
	lockout *LockoutTracker
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(users storage.UserRepository, lockout *LockoutTracker) *Authenticator {
	return &Authenticator{users: users, lockout: lockout}
}

// Authenticate returns the user for valid credentials. Unknown users and wrong
// passwords both count toward the lockout and return ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if a.lockout.IsLocked(username) {
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		log.Printf("login blocked: account %s locked for %v", username, a.lockout.RemainingLockoutTime(username).Round(time.Second))
		return nil, ErrLocked
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !CheckPassword(user.PasswordHash, password) {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		if a.lockout.RecordFailure(username) {
			log.Printf("login failed: %s is now locked", username)
		}
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, ErrInactive
	}

	a.lockout.ClearFailures(username)
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	now := time.Now().UTC()
	if err := a.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Printf("update last login error: %v", err)
	} else {
		user.LastLoginAt = now
	}
	return user, nil
}
