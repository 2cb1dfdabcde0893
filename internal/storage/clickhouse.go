package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	Database string
	Username string
	Password string

	MaxOpenConns int
	MaxIdleConns int
	DialTimeout  time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for run rows.
	RetentionDays int
}

// ClickHouseStorage is the analytics sink for alert runs.
type ClickHouseStorage struct {
	config *ClickHouseConfig
	db     *sql.DB
}

// NewClickHouseStorage creates a new ClickHouse storage.
func NewClickHouseStorage(config *ClickHouseConfig) *ClickHouseStorage {
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 365
	}
	return &ClickHouseStorage{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseStorage) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}
	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *ClickHouseStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the alert_runs table if it doesn't exist.
func (s *ClickHouseStorage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS alert_runs (
			id UUID,
			alert_id String,
			alert_name String,
			status LowCardinality(String),
			triggered UInt8,
			value Float64,
			error String,
			duration_ms Int64,
			cost Float64,
			started_at DateTime64(3, 'UTC'),
			_date Date DEFAULT toDate(started_at)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (alert_id, started_at, id)
		TTL _date + INTERVAL %d DAY DELETE
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create alert_runs table: %w", err)
	}

	idx := "ALTER TABLE alert_runs ADD INDEX IF NOT EXISTS idx_status status TYPE set(8) GRANULARITY 4"
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		log.Printf("warning: failed to create clickhouse index: %v", err)
	}
	return nil
}

// Ping checks the connection health.
func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertRuns writes runs in one batch.
func (s *ClickHouseStorage) InsertRuns(ctx context.Context, runs []*models.AlertHistory) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alert_runs (
			id, alert_id, alert_name, status, triggered, value,
			error, duration_ms, cost, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, run := range runs {
		id := run.ID
		if id == "" {
			id = uuid.New().String()
		}
		var triggered uint8
		if run.Triggered {
			triggered = 1
		}
		_, err := stmt.ExecContext(ctx,
			id,
			run.AlertID,
			run.AlertName,
			string(run.Status),
			triggered,
			run.Value,
			run.Error,
			run.Duration.Milliseconds(),
			run.Cost,
			run.StartedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DailyStats aggregates runs per UTC day since the given time.
func (s *ClickHouseStorage) DailyStats(ctx context.Context, since time.Time) ([]DailyStat, error) {
	query := `
		SELECT toDate(started_at) AS day,
			count() AS runs,
			countIf(status = 'failed') AS failures,
			countIf(triggered = 1) AS triggers,
			sum(cost) AS cost
		FROM alert_runs
		WHERE started_at >= ?
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var st DailyStat
		var runs, failures, triggers uint64
		if err := rows.Scan(&st.Day, &runs, &failures, &triggers, &st.Cost); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		st.Runs = int(runs)
		st.Failures = int(failures)
		st.Triggers = int(triggers)
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
