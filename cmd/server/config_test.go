package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "server.yaml")

	configContent := `
server:
  address: ":9090"
  metrics_address: ":9100"

database:
  path: "/var/lib/reportwatch/rw.db"

runner:
  interval: 30s
  cost_per_query: 0.02

clickhouse:
  enabled: true

nats:
  enabled: true
  url: "nats://nats:4222"

notifications:
  telegram:
    bot_token: "123:abc"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":9090" || cfg.Server.MetricsAddress != ":9100" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.BaseURL != "http://localhost:9090" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.Runner.Interval != 30*time.Second || cfg.Runner.CostPerQuery != 0.02 {
		t.Errorf("runner = %+v", cfg.Runner)
	}
	if !*cfg.Runner.Enabled {
		t.Error("runner should default to enabled")
	}
	if cfg.ClickHouse.Database != "reportwatch" || len(cfg.ClickHouse.Addresses) != 1 {
		t.Errorf("clickhouse defaults = %+v", cfg.ClickHouse)
	}
	if cfg.NATS.URL != "nats://nats:4222" || cfg.NATS.Prefix != "reportwatch" {
		t.Errorf("nats = %+v", cfg.NATS)
	}
	if cfg.Notifications.Telegram.BotToken != "123:abc" {
		t.Errorf("telegram = %+v", cfg.Notifications.Telegram)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Address != ":8080" {
		t.Errorf("Address = %q", cfg.Server.Address)
	}
	if cfg.Database.Path != "./data/reportwatch.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Runner.Interval != time.Minute || cfg.Auth.LockoutAttempts != 5 {
		t.Errorf("defaults = %+v %+v", cfg.Runner, cfg.Auth)
	}
	if cfg.ClickHouse.Database != "" {
		t.Error("disabled clickhouse should not get defaults")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"tls without cert", func(c *Config) { c.Server.TLS.Enabled = true }},
		{"tls without key", func(c *Config) {
			c.Server.TLS.Enabled = true
			c.Server.TLS.CertFile = "cert.pem"
		}},
		{"runner interval too short", func(c *Config) { c.Runner.Interval = time.Millisecond }},
		{"negative cost", func(c *Config) { c.Runner.CostPerQuery = -1 }},
		{"negative notification limit", func(c *Config) { c.Notifications.MaxPerMinute = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadSecrets(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	jwt := strings.Repeat("j", 32)

	if _, err := LoadSecrets(env(nil)); err == nil {
		t.Error("missing JWT secret should fail")
	}
	if _, err := LoadSecrets(env(map[string]string{"REPORTWATCH_JWT_SECRET": "short"})); err == nil {
		t.Error("short JWT secret should fail")
	}

	s, err := LoadSecrets(env(map[string]string{"REPORTWATCH_JWT_SECRET": jwt}))
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if s.CSRFKey != nil {
		t.Error("unset CSRF key should stay nil")
	}

	s, err = LoadSecrets(env(map[string]string{
		"REPORTWATCH_JWT_SECRET": jwt,
		"REPORTWATCH_CSRF_KEY":   strings.Repeat("ab", 32),
	}))
	if err != nil {
		t.Fatalf("LoadSecrets hex: %v", err)
	}
	if len(s.CSRFKey) != 32 || s.CSRFKey[0] != 0xab {
		t.Errorf("hex key = %x", s.CSRFKey)
	}

	if _, err := LoadSecrets(env(map[string]string{
		"REPORTWATCH_JWT_SECRET": jwt,
		"REPORTWATCH_CSRF_KEY":   "too-short",
	})); err == nil {
		t.Error("bad CSRF key length should fail")
	}
}
