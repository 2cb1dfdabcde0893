// Package web serves the server-rendered dashboard.
package web

import (
	"errors"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/web/handlers"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

// Config configures the web UI.
type Config struct {
	// CSRFKey is the 32-byte key gorilla/csrf signs tokens with.
	CSRFKey []byte
	// SecureCookies marks the CSRF cookie Secure.
	SecureCookies bool
}

type Server struct {
	handler  *handlers.Handler
	deps     handlers.Deps
	sessions *session.Store
	csrfKey  []byte
	secure   bool
}

// NewServer creates the web server. The session store is shared with the
// API so browser sessions also authenticate API calls.
func NewServer(cfg Config, deps handlers.Deps) (*Server, error) {
	if len(cfg.CSRFKey) != 32 {
		return nil, errors.New("csrf key must be 32 bytes")
	}
	switch {
	case deps.Storage == nil:
		return nil, errors.New("storage is required")
	case deps.Auth == nil:
		return nil, errors.New("authenticator is required")
	case deps.Accounts == nil:
		return nil, errors.New("accounts service is required")
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Runner == nil:
		return nil, errors.New("runner is required")
	case deps.Preferences == nil:
		return nil, errors.New("preferences are required")
	case deps.Analytics == nil:
		return nil, errors.New("analytics is required")
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(24 * time.Hour)
	}

	return &Server{
		handler:  handlers.NewHandler(deps),
		deps:     deps,
		sessions: deps.Sessions,
		csrfKey:  cfg.CSRFKey,
		secure:   cfg.SecureCookies,
	}, nil
}

func (s *Server) Sessions() *session.Store {
	return s.sessions
}

func (s *Server) Handler() *handlers.Handler {
	return s.handler
}
