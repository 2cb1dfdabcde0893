package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// RefreshToken is a long-lived API credential; only its hash is stored.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// NewRefreshToken returns the token record and the plaintext handed to the client.
func NewRefreshToken(userID string, ttl time.Duration) (*RefreshToken, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)

	now := time.Now()
	return &RefreshToken{
		UserID:    userID,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, plain, nil
}

// HashToken hashes a plaintext token for lookup.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Revoked reports whether the token was revoked.
func (t *RefreshToken) Revoked() bool {
	return !t.RevokedAt.IsZero()
}

// IsValid returns true if the token is neither revoked nor expired at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked() && now.Before(t.ExpiresAt)
}
