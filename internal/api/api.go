// Package api provides the HTTP server: the JSON API under /api/v1, health
// probes and, when configured, the web UI mounted at the root.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/api/alerts"
	analyticsapi "github.com/good-yellow-bee/reportwatch/internal/api/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/api/health"
	powerbiapi "github.com/good-yellow-bee/reportwatch/internal/api/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

// Config contains HTTP server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	HTTPTLSEnabled   bool
	HTTPTLSCertFile  string
	HTTPTLSKeyFile   string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int // login attempts per minute
	RateLimitPerUser int // requests per minute
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 300
	}
}

// Deps are the services the handlers run on.
type Deps struct {
	Storage     storage.Storage
	Auth        *auth.Authenticator
	Accounts    *accounts.Service
	Catalog     *powerbi.Catalog
	Runner      alerts.Runner
	Preferences *preferences.Service
	Analytics   analyticsapi.Summarizer
	Tester      powerbiapi.ConnectionTester
	Events      events.Publisher
	Sessions    *session.Store

	// Web is mounted at / when set.
	Web http.Handler
}

func (d *Deps) validate() error {
	switch {
	case d.Storage == nil:
		return errors.New("storage is required")
	case d.Auth == nil:
		return errors.New("authenticator is required")
	case d.Accounts == nil:
		return errors.New("accounts service is required")
	case d.Catalog == nil:
		return errors.New("catalog is required")
	case d.Preferences == nil:
		return errors.New("preferences service is required")
	case d.Sessions == nil:
		return errors.New("session store is required")
	}
	return nil
}

// Server is the HTTP server.
type Server struct {
	config        *Config
	deps          Deps
	server        *http.Server
	healthHandler *health.Handler
	tokens        *auth.TokenService
}

// New creates a server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		deps:          deps,
		healthHandler: health.NewHandler(),
		tokens:        auth.NewTokenService(deps.Storage, cfg.RefreshTokenTTL),
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is canceled. Expired refresh tokens are purged hourly.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.server.Shutdown(shutdownCtx)
		case err := <-errChan:
			return err
		case <-ticker.C:
			if n, err := s.tokens.Cleanup(ctx); err != nil {
				log.Printf("token cleanup error: %v", err)
			} else if n > 0 {
				log.Printf("purged %d expired refresh tokens", n)
			}
		}
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a readiness checker.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthHandler.RegisterChecker(c)
}
