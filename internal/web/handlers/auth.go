package handlers

import (
	"errors"
	"net/http"

	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	apimw "github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	webmw "github.com/good-yellow-bee/reportwatch/internal/web/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		if _, ok := h.sessions.Get(cookie.Value); ok {
			http.Redirect(w, r, "/alerts", http.StatusFound)
			return
		}
	}
	h.render(w, r, http.StatusOK, pages.Login(h.base(r), "", ""))
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.loginError(w, r, http.StatusBadRequest, "", "Invalid form data")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.loginError(w, r, http.StatusBadRequest, username, "Username and password are required")
		return
	}

	user, err := h.auth.Authenticate(r.Context(), username, password)
	switch {
	case errors.Is(err, auth.ErrLocked):
		h.loginError(w, r, http.StatusTooManyRequests, username, "Account temporarily locked due to too many failed attempts")
		return
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInactive):
		h.loginError(w, r, http.StatusUnauthorized, username, "Invalid credentials")
		return
	case err != nil:
		h.serverError(w, "login", err)
		return
	}

	// Drop any existing session to prevent fixation.
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}

	ttl := h.sessions.TTL()
	if r.PostFormValue("remember_me") == "on" {
		ttl = RememberMeTTL
	}
	sess, err := h.sessions.CreateWithTTL(user.ID, user.Username, string(user.Role), ttl)
	if err != nil {
		h.serverError(w, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   apimw.IsRequestSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
	http.Redirect(w, r, "/alerts", http.StatusFound)
}

func (h *Handler) loginError(w http.ResponseWriter, r *http.Request, status int, username, msg string) {
	h.render(w, r, status, pages.Login(h.base(r), username, msg))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	webmw.ClearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// ShowOnboarding renders the first-run page, or moves on when it was
// already completed.
func (h *Handler) ShowOnboarding(w http.ResponseWriter, r *http.Request) {
	done, err := h.prefs.Onboarded(r.Context())
	if err != nil {
		h.serverError(w, "get onboarding", err)
		return
	}
	if done {
		http.Redirect(w, r, "/alerts", http.StatusFound)
		return
	}
	workspaces, reports, _, _ := h.catalog.Counts()
	h.render(w, r, http.StatusOK, pages.Onboarding(h.base(r), reports, workspaces))
}

func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.SetOnboarded(r.Context(), true); err != nil {
		h.serverError(w, "set onboarding", err)
		return
	}
	h.redirect(w, r, "/alerts", session.FlashSuccess, "Welcome to ReportWatch")
}
