// Package datasource checks connectivity to the databases behind Power BI
// data sources.
package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// ErrUnsupported is returned for data source types that cannot be tested.
var ErrUnsupported = errors.New("connection test not supported for this data source type")

// DefaultTimeout bounds a single connection test.
const DefaultTimeout = 10 * time.Second

// Credentials are supplied per test and never stored.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// SSLMode is disable, require or verify-full. Empty means require.
	SSLMode string `json:"ssl_mode,omitempty"`
}

// Result describes the outcome of a connection test.
type Result struct {
	DataSourceID string        `json:"datasource_id"`
	Driver       string        `json:"driver"`
	OK           bool          `json:"ok"`
	Latency      time.Duration `json:"latency"`
	Error        string        `json:"error,omitempty"`
	TestedAt     time.Time     `json:"tested_at"`
}

// Tester opens short-lived connections to data sources.
type Tester struct {
	timeout time.Duration
	open    func(driver, dsn string) (*sql.DB, error)
}

// NewTester creates a tester. A non-positive timeout uses DefaultTimeout.
func NewTester(timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tester{timeout: timeout, open: sql.Open}
}

// Supported reports whether a data source type can be tested.
func Supported(dsType string) bool {
	switch normalizeType(dsType) {
	case "sqlserver", "postgresql", "mysql":
		return true
	}
	return false
}

// Test pings the data source with creds. Connection failures are reported in
// the Result; the error is reserved for unsupported types and bad input.
func (t *Tester) Test(ctx context.Context, ds models.DataSource, creds Credentials) (*Result, error) {
	driver, dsn, err := DSN(ds, creds)
	if err != nil {
		return nil, err
	}

	res := &Result{DataSourceID: ds.ID, Driver: driver, TestedAt: time.Now().UTC()}

	db, err := t.open(driver, dsn)
	if err != nil {
		res.Error = fmt.Sprintf("open %s connection: %v", driver, err)
		return res, nil
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	err = db.PingContext(ctx)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = fmt.Sprintf("ping %s: %v", driver, err)
		return res, nil
	}
	res.OK = true
	return res, nil
}

// DSN returns the database/sql driver name and connection string for ds.
func DSN(ds models.DataSource, creds Credentials) (driver, dsn string, err error) {
	if strings.TrimSpace(ds.Host) == "" {
		return "", "", fmt.Errorf("data source %s has no host", ds.ID)
	}
	sslMode := strings.ToLower(strings.TrimSpace(creds.SSLMode))
	if sslMode == "" {
		sslMode = "require"
	}

	switch normalizeType(ds.Type) {
	case "sqlserver":
		port := ds.Port
		if port == 0 {
			port = 1433
		}
		q := url.Values{}
		if ds.Database != "" {
			q.Set("database", ds.Database)
		}
		if sslMode == "disable" {
			q.Set("encrypt", "disable")
		} else {
			q.Set("encrypt", "true")
		}
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(creds.Username, creds.Password),
			Host:     net.JoinHostPort(ds.Host, strconv.Itoa(port)),
			RawQuery: q.Encode(),
		}
		return "sqlserver", u.String(), nil

	case "postgresql":
		port := ds.Port
		if port == 0 {
			port = 5432
		}
		q := url.Values{}
		q.Set("sslmode", sslMode)
		q.Set("connect_timeout", "10")
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(creds.Username, creds.Password),
			Host:     net.JoinHostPort(ds.Host, strconv.Itoa(port)),
			Path:     "/" + ds.Database,
			RawQuery: q.Encode(),
		}
		return "pgx", u.String(), nil

	case "mysql":
		port := ds.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = creds.Username
		cfg.Passwd = creds.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(ds.Host, strconv.Itoa(port))
		cfg.DBName = ds.Database
		cfg.ParseTime = true
		cfg.Timeout = 10 * time.Second
		switch sslMode {
		case "disable":
			cfg.TLSConfig = "false"
		case "verify-full":
			cfg.TLSConfig = "true"
		default:
			cfg.TLSConfig = "skip-verify"
		}
		return "mysql", cfg.FormatDSN(), nil
	}

	return "", "", fmt.Errorf("%s (%s): %w", ds.ID, ds.Type, ErrUnsupported)
}

func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "sqlserver", "mssql", "azuresql":
		return "sqlserver"
	case "postgresql", "postgres":
		return "postgresql"
	case "mysql", "mariadb":
		return "mysql"
	}
	return strings.ToLower(strings.TrimSpace(t))
}
