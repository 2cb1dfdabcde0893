// Package preferences serves onboarding, settings, admin clients and data
// catalog tables.
package preferences

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
)

// Handler handles preference endpoints.
type Handler struct {
	prefs *preferences.Service
}

// NewHandler creates a preferences handler.
func NewHandler(prefs *preferences.Service) *Handler {
	return &Handler{prefs: prefs}
}

// OnboardingState is the onboarding flag.
type OnboardingState struct {
	Onboarded bool `json:"onboarded"`
}

// GetOnboarding returns the onboarding flag.
func (h *Handler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	done, err := h.prefs.Onboarded(r.Context())
	if err != nil {
		respond.Internal(w, "get onboarding", err)
		return
	}
	respond.OK(w, OnboardingState{Onboarded: done})
}

// SetOnboarding sets the onboarding flag. An empty body completes onboarding.
func (h *Handler) SetOnboarding(w http.ResponseWriter, r *http.Request) {
	state := OnboardingState{Onboarded: true}
	if r.ContentLength > 0 {
		if err := respond.Decode(w, r, &state); err != nil {
			respond.Fail(w, respond.ErrInvalidBody)
			return
		}
	}
	if err := h.prefs.SetOnboarded(r.Context(), state.Onboarded); err != nil {
		respond.Internal(w, "set onboarding", err)
		return
	}
	respond.OK(w, state)
}

// GetSettings returns the settings document.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.prefs.Settings(r.Context())
	if err != nil {
		respond.Internal(w, "get settings", err)
		return
	}
	respond.OK(w, settings)
}

// UpdateSettings replaces the settings document.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := respond.Decode(w, r, &settings); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	saved, err := h.prefs.UpdateSettings(r.Context(), settings)
	if err != nil {
		fail(w, "update settings", err)
		return
	}
	respond.OK(w, saved)
}

// ListClients returns the admin console clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.prefs.Clients(r.Context())
	if err != nil {
		respond.Internal(w, "list clients", err)
		return
	}
	if clients == nil {
		clients = []models.AdminClient{}
	}
	respond.OK(w, clients)
}

// CreateClient adds an admin console client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var c models.AdminClient
	if err := respond.Decode(w, r, &c); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	created, err := h.prefs.AddClient(r.Context(), c)
	if err != nil {
		fail(w, "add client", err)
		return
	}
	respond.Created(w, created)
}

// DeleteClient removes an admin console client.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, "delete client", err)
		return
	}
	respond.NoContent(w)
}

// ListTables returns the data catalog tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.prefs.Tables(r.Context())
	if err != nil {
		respond.Internal(w, "list tables", err)
		return
	}
	if tables == nil {
		tables = []models.CatalogTable{}
	}
	respond.OK(w, tables)
}

// PutTable creates or replaces a data catalog table.
func (h *Handler) PutTable(w http.ResponseWriter, r *http.Request) {
	var table models.CatalogTable
	if err := respond.Decode(w, r, &table); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	saved, err := h.prefs.PutTable(r.Context(), chi.URLParam(r, "name"), table)
	if err != nil {
		fail(w, "put table", err)
		return
	}
	respond.OK(w, saved)
}

// DeleteTable removes a data catalog table.
func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := h.prefs.DeleteTable(r.Context(), chi.URLParam(r, "name")); err != nil {
		fail(w, "delete table", err)
		return
	}
	respond.NoContent(w)
}

func fail(w http.ResponseWriter, op string, err error) {
	var verr *preferences.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Fail(w, respond.Validation(verr.Error(), nil))
	case errors.Is(err, preferences.ErrConflict):
		respond.Fail(w, respond.Conflict(err.Error()))
	case errors.Is(err, preferences.ErrNotFound):
		respond.Fail(w, respond.NotFound(err.Error()))
	default:
		respond.Internal(w, op, err)
	}
}
