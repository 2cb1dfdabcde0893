package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

// settingsFields are the settings keys edited by the settings form.
var settingsFields = []string{"companyName", "theme", "defaultFrequency", "costPerQuery"}

// ShowSettings renders the settings page.
func (h *Handler) ShowSettings(w http.ResponseWriter, r *http.Request) {
	h.renderSettings(w, r, http.StatusOK, pages.SettingsView{})
}

func (h *Handler) renderSettings(w http.ResponseWriter, r *http.Request, status int, view pages.SettingsView) {
	ctx := r.Context()
	if view.Settings == nil {
		settings, err := h.prefs.Settings(ctx)
		if err != nil {
			h.serverError(w, "get settings", err)
			return
		}
		view.Settings = settings
	}
	alerts, err := h.alerts.List(ctx)
	if err != nil {
		h.serverError(w, "list alerts", err)
		return
	}
	view.Alerts = alerts
	view.User = currentUser(r)
	h.render(w, r, status, pages.Settings(h.base(r), view))
}

// UpdateSettings merges the form fields into the settings blob. Keys the
// form does not edit are kept.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	settings, err := h.prefs.Settings(ctx)
	if err != nil {
		h.serverError(w, "get settings", err)
		return
	}

	for _, key := range settingsFields {
		v := strings.TrimSpace(r.PostFormValue(key))
		switch {
		case v == "":
			delete(settings, key)
		case key == "costPerQuery":
			cost, err := strconv.ParseFloat(v, 64)
			if err != nil {
				h.renderSettings(w, r, http.StatusBadRequest, pages.SettingsView{
					Settings:      settings,
					SettingsError: "cost per query must be a number",
				})
				return
			}
			settings[key] = cost
		default:
			settings[key] = v
		}
	}

	if _, err := h.prefs.UpdateSettings(ctx, settings); err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			h.renderSettings(w, r, http.StatusBadRequest, pages.SettingsView{
				Settings:      settings,
				SettingsError: verr.Error(),
			})
			return
		}
		h.serverError(w, "update settings", err)
		return
	}
	h.redirect(w, r, "/settings", session.FlashSuccess, "Settings saved")
}

// UpdateSubscriptions replaces the caller's alert subscriptions.
func (h *Handler) UpdateSubscriptions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ids := r.PostForm["alert_id"]
	if ids == nil {
		ids = []string{}
	}
	_, err := h.accounts.SetSubscriptions(r.Context(), currentUser(r).ID, ids)
	var fieldErrs accounts.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		h.redirect(w, r, "/settings", session.FlashError, fieldErrs["subscriptions"])
	case err != nil:
		h.serverError(w, "update subscriptions", err)
	default:
		h.redirect(w, r, "/settings", session.FlashSuccess, "Subscriptions saved")
	}
}

// ChangePassword changes the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	err := h.accounts.ChangePassword(r.Context(), currentUser(r).ID, accounts.PasswordInput{
		Current: r.PostFormValue("current_password"),
		New:     r.PostFormValue("new_password"),
		Confirm: r.PostFormValue("confirm_password"),
	})

	var fieldErrs accounts.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		h.renderSettings(w, r, http.StatusBadRequest, pages.SettingsView{PasswordErrors: fieldErrs})
	case errors.Is(err, accounts.ErrWrongPassword):
		h.renderSettings(w, r, http.StatusBadRequest, pages.SettingsView{
			PasswordErrors: map[string]string{"current_password": err.Error()},
		})
	case err != nil:
		h.serverError(w, "change password", err)
	default:
		h.redirect(w, r, "/settings", session.FlashSuccess, "Password changed")
	}
}

