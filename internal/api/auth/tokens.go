package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

// ErrInvalidRefreshToken is returned for unknown, expired or revoked tokens
// and for tokens whose user is gone or deactivated.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// TokenService issues and rotates refresh tokens.
type TokenService struct {
	tokens storage.TokenRepository
	users  storage.UserRepository
	ttl    time.Duration
}

// NewTokenService creates a token service.
func NewTokenService(store storage.Storage, ttl time.Duration) *TokenService {
	return &TokenService{tokens: store.Tokens(), users: store.Users(), ttl: ttl}
}

// Create stores a new refresh token for userID and returns its plaintext.
func (s *TokenService) Create(ctx context.Context, userID string) (string, error) {
	token, plain, err := models.NewRefreshToken(userID, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()
	return plain, nil
}

// Validate returns the active user owning plain.
func (s *TokenService) Validate(ctx context.Context, plain string) (*models.User, error) {
	token, err := s.tokens.GetByTokenHash(ctx, models.HashToken(plain))
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil || !token.IsValid(time.Now()) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.Active {
		return nil, ErrInvalidRefreshToken
	}
	return user, nil
}

// Revoke revokes one refresh token.
func (s *TokenService) Revoke(ctx context.Context, plain string) error {
	return s.tokens.RevokeByTokenHash(ctx, models.HashToken(plain))
}

// RevokeAll revokes every refresh token of a user.
func (s *TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// Rotate revokes old and issues a replacement for userID.
func (s *TokenService) Rotate(ctx context.Context, old, userID string) (string, error) {
	if err := s.Revoke(ctx, old); err != nil {
		log.Printf("rotate refresh token: revoke old: %v", err)
	}
	return s.Create(ctx, userID)
}

// Cleanup removes expired tokens.
func (s *TokenService) Cleanup(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}
