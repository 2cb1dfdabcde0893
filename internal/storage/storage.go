// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a default admin if no users exist.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Alerts() AlertRepository
	AlertHistory() AlertHistoryRepository
	Tokens() TokenRepository
	KV() KVRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// AlertRepository defines operations for alert management.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Alert, error)
	ListActive(ctx context.Context) ([]*models.Alert, error)
	SetActive(ctx context.Context, id string, active bool) error
	// RecordRun persists the run counters, status and last-run time of alert.
	RecordRun(ctx context.Context, alert *models.Alert) error
}

// AlertHistoryRepository defines operations for alert execution history.
type AlertHistoryRepository interface {
	Create(ctx context.Context, history *models.AlertHistory) error
	List(ctx context.Context, filter models.HistoryFilter, limit, offset int) ([]*models.AlertHistory, int64, error)
	DailyStats(ctx context.Context, since time.Time) ([]DailyStat, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// KVRepository stores JSON documents by key. Get returns nil for a missing key.
type KVRepository interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
}

// DailyStat aggregates the runs of one UTC day.
type DailyStat struct {
	Day      time.Time `json:"day"`
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	Triggers int       `json:"triggers"`
	Cost     float64   `json:"cost"`
}

// RunSink receives alert executions for long-term analytics.
type RunSink interface {
	InsertRuns(ctx context.Context, runs []*models.AlertHistory) error
}
