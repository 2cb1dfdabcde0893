package health

import (
	"context"
	"database/sql"
	"errors"
)

// SQLiteChecker checks the metadata database.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a SQLite checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

func (c *SQLiteChecker) Name() string { return "sqlite" }

func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return errors.New("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// Pinger is implemented by the ClickHouse sink and the NATS publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker checks an optional dependency by name.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewClickHouseChecker checks the analytics sink.
func NewClickHouseChecker(p Pinger) *PingChecker {
	return &PingChecker{name: "clickhouse", pinger: p}
}

// NewNATSChecker checks the event bus connection.
func NewNATSChecker(p Pinger) *PingChecker {
	return &PingChecker{name: "nats", pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return errors.New(c.name + " not configured")
	}
	return c.pinger.Ping(ctx)
}

// CatalogCounter reports the size of the Power BI catalog.
type CatalogCounter interface {
	Counts() (workspaces, reports, datasets, datasources int)
}

// CatalogChecker fails when the catalog has no reports to alert on.
type CatalogChecker struct {
	catalog CatalogCounter
}

// NewCatalogChecker creates a catalog checker.
func NewCatalogChecker(c CatalogCounter) *CatalogChecker {
	return &CatalogChecker{catalog: c}
}

func (c *CatalogChecker) Name() string { return "catalog" }

func (c *CatalogChecker) Check(context.Context) error {
	if c.catalog == nil {
		return errors.New("catalog not loaded")
	}
	if _, reports, _, _ := c.catalog.Counts(); reports == 0 {
		return errors.New("catalog has no reports")
	}
	return nil
}
