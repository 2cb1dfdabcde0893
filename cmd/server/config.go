// Package main provides the ReportWatch server CLI.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Runner        RunnerConfig        `yaml:"runner"`
	Auth          AuthConfig          `yaml:"auth"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	NATS          NATSConfig          `yaml:"nats"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Verbose       bool                `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address        string    `yaml:"address"`         // HTTP listen address (default: :8080)
	MetricsAddress string    `yaml:"metrics_address"` // Prometheus listener, empty disables it
	BaseURL        string    `yaml:"base_url"`        // public URL used in notification links
	SecureCookies  bool      `yaml:"secure_cookies"`  // mark cookies Secure behind a TLS proxy
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig contains HTTPS settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig locates the SQLite metadata database.
type DatabaseConfig struct {
	Path string `yaml:"path"` // default: ./data/reportwatch.db
}

// CatalogConfig points at a Power BI catalog fixture. Empty uses the
// built-in one.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload the fixture when it changes
}

// RunnerConfig configures scheduled alert execution.
type RunnerConfig struct {
	Enabled      *bool         `yaml:"enabled"` // default: true
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	CostPerQuery float64       `yaml:"cost_per_query"`
}

// AuthConfig holds token lifetimes, rate limits and lockout policy.
type AuthConfig struct {
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	RateLimitPerIP   int           `yaml:"rate_limit_per_ip"`
	RateLimitPerUser int           `yaml:"rate_limit_per_user"`
	LockoutAttempts  int           `yaml:"lockout_attempts"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`
}

// ClickHouseConfig enables the analytics sink.
type ClickHouseConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addresses     []string      `yaml:"addresses"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	RetentionDays int           `yaml:"retention_days"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// NATSConfig enables event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
}

// NotificationsConfig configures the delivery channels. A channel without
// credentials is not registered.
type NotificationsConfig struct {
	MaxPerMinute int `yaml:"max_per_minute"` // per alert, 0 uses the default

	Email struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"email"`
	Teams struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"teams"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`
	WhatsApp struct {
		APIURL        string `yaml:"api_url"`
		PhoneNumberID string `yaml:"phone_number_id"`
		AccessToken   string `yaml:"access_token"`
	} `yaml:"whatsapp"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost" + c.Server.Address
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/reportwatch.db"
	}
	if c.Runner.Enabled == nil {
		enabled := true
		c.Runner.Enabled = &enabled
	}
	if c.Runner.Interval == 0 {
		c.Runner.Interval = time.Minute
	}
	if c.Runner.Timeout == 0 {
		c.Runner.Timeout = 30 * time.Second
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Auth.LockoutAttempts == 0 {
		c.Auth.LockoutAttempts = 5
	}
	if c.Auth.LockoutDuration == 0 {
		c.Auth.LockoutDuration = 15 * time.Minute
	}
	if c.ClickHouse.Enabled {
		if len(c.ClickHouse.Addresses) == 0 {
			c.ClickHouse.Addresses = []string{"localhost:9000"}
		}
		if c.ClickHouse.Database == "" {
			c.ClickHouse.Database = "reportwatch"
		}
		if c.ClickHouse.RetentionDays == 0 {
			c.ClickHouse.RetentionDays = 90
		}
	}
	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			c.NATS.URL = "nats://localhost:4222"
		}
		if c.NATS.Prefix == "" {
			c.NATS.Prefix = "reportwatch"
		}
	}
	if c.Notifications.Email.Host != "" && c.Notifications.Email.Port == 0 {
		c.Notifications.Email.Port = 587
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	if c.Runner.Interval < time.Second {
		return fmt.Errorf("runner.interval must be at least 1s")
	}
	if c.Runner.CostPerQuery < 0 {
		return fmt.Errorf("runner.cost_per_query must not be negative")
	}
	if c.Auth.LockoutAttempts < 0 {
		return fmt.Errorf("auth.lockout_attempts must not be negative")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.RetentionDays < 0 {
		return fmt.Errorf("clickhouse.retention_days must not be negative")
	}
	if c.Notifications.MaxPerMinute < 0 {
		return fmt.Errorf("notifications.max_per_minute must not be negative")
	}
	return nil
}

// Secrets are read from the environment, never from the config file.
type Secrets struct {
	JWTSecret []byte
	CSRFKey   []byte // nil when unset
}

// LoadSecrets reads REPORTWATCH_JWT_SECRET and REPORTWATCH_CSRF_KEY. The
// CSRF key is either 32 raw bytes or 64 hex characters.
func LoadSecrets(getenv func(string) string) (*Secrets, error) {
	jwtSecret := getenv("REPORTWATCH_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("REPORTWATCH_JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("REPORTWATCH_JWT_SECRET must be at least 32 characters")
	}
	s := &Secrets{JWTSecret: []byte(jwtSecret)}

	key := getenv("REPORTWATCH_CSRF_KEY")
	switch {
	case key == "":
	case len(key) == 32:
		s.CSRFKey = []byte(key)
	case len(key) == 64:
		b, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("REPORTWATCH_CSRF_KEY: %w", err)
		}
		s.CSRFKey = b
	default:
		return nil, fmt.Errorf("REPORTWATCH_CSRF_KEY must be 32 bytes or 64 hex characters")
	}
	return s, nil
}
