// Package handlers serves the web UI pages.
package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/csrf"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	apimw "github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
	webmw "github.com/good-yellow-bee/reportwatch/internal/web/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

// RememberMeTTL is the session lifetime when "remember me" is checked.
const RememberMeTTL = 30 * 24 * time.Hour

// Runner executes an alert on demand.
type Runner interface {
	RunAlert(ctx context.Context, id string) (*models.AlertHistory, error)
}

// Summarizer builds the analytics summary.
type Summarizer interface {
	Summary(ctx context.Context, now time.Time) (*analytics.Summary, error)
}

// Deps are the services behind the pages.
type Deps struct {
	Storage     storage.Storage
	Sessions    *session.Store
	Auth        *auth.Authenticator
	Accounts    *accounts.Service
	Catalog     *powerbi.Catalog
	Runner      Runner
	Preferences *preferences.Service
	Analytics   Summarizer
	Events      events.Publisher
}

// Handler serves the web pages.
type Handler struct {
	alerts    storage.AlertRepository
	history   storage.AlertHistoryRepository
	sessions  *session.Store
	auth      *auth.Authenticator
	accounts  *accounts.Service
	catalog   *powerbi.Catalog
	runner    Runner
	prefs     *preferences.Service
	analytics Summarizer
	events    events.Publisher
	now       func() time.Time
}

// NewHandler creates the page handler. A nil publisher disables events.
func NewHandler(d Deps) *Handler {
	if d.Sessions == nil {
		d.Sessions = session.NewStore(24 * time.Hour)
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	return &Handler{
		alerts:    d.Storage.Alerts(),
		history:   d.Storage.AlertHistory(),
		sessions:  d.Sessions,
		auth:      d.Auth,
		accounts:  d.Accounts,
		catalog:   d.Catalog,
		runner:    d.Runner,
		prefs:     d.Preferences,
		analytics: d.Analytics,
		events:    d.Events,
		now:       time.Now,
	}
}

// base builds the layout data of the request: user, CSRF token, nonce and
// pending flashes.
func (h *Handler) base(r *http.Request) components.Base {
	b := components.Base{
		CSRFToken: csrf.Token(r),
		Nonce:     apimw.GetCSPNonce(r.Context()),
	}
	if u := apimw.GetUser(r.Context()); u != nil {
		b.Username = u.Username
		b.Role = string(u.Role)
	}
	if sess := webmw.GetSession(r); sess != nil {
		b.Flashes = h.sessions.PopFlashes(sess.ID)
	}
	return b
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		log.Printf("render %s error: %v", r.URL.Path, err)
	}
}

// redirect stores a flash for the next page and sends the browser to url.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url, kind, msg string) {
	if sess := webmw.GetSession(r); sess != nil && msg != "" {
		h.sessions.AddFlash(sess.ID, kind, msg)
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("%s error: %v", op, err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) publish(ctx context.Context, subject string, payload any) {
	if err := h.events.Publish(ctx, subject, payload); err != nil {
		log.Printf("publish %s error: %v", subject, err)
	}
}

func currentUser(r *http.Request) *models.User {
	return apimw.GetUser(r.Context())
}

func can(r *http.Request, perm string) bool {
	u := currentUser(r)
	return u != nil && u.HasPermission(perm)
}

// NotFound renders the catch-all page with status 404.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, pages.NotFound(h.base(r), r.URL.Path))
}
