// Package users serves the user management endpoints.
package users

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
)

// Handler handles user endpoints.
type Handler struct {
	accounts *accounts.Service
}

// NewHandler creates a users handler.
func NewHandler(svc *accounts.Service) *Handler {
	return &Handler{accounts: svc}
}

// SubscriptionsRequest replaces a user's alert subscriptions.
type SubscriptionsRequest struct {
	AlertIDs []string `json:"alert_ids"`
}

// List returns users filtered by q, role and active.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := accounts.Query{Search: r.URL.Query().Get("q")}
	if role := r.URL.Query().Get("role"); role != "" {
		parsed, msg := accounts.ValidateRole(role)
		if msg != "" {
			respond.Fail(w, respond.BadRequest(msg))
			return
		}
		q.Role = parsed
	}
	if v, err := strconv.ParseBool(r.URL.Query().Get("active")); err == nil {
		q.Active = &v
	}

	users, err := h.accounts.List(r.Context(), q)
	if err != nil {
		respond.Internal(w, "list users", err)
		return
	}
	respond.OK(w, users)
}

// Create adds a user.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in accounts.CreateInput
	if err := respond.Decode(w, r, &in); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	user, err := h.accounts.Create(r.Context(), in)
	if err != nil {
		fail(w, "create user", err)
		return
	}
	respond.Created(w, user)
}

// GetByID returns a user (admin or self).
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "get user", err)
		return
	}
	respond.OK(w, user)
}

// Update edits name, email, role and permissions.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in accounts.UpdateInput
	if err := respond.Decode(w, r, &in); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	user, err := h.accounts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		fail(w, "update user", err)
		return
	}
	respond.OK(w, user)
}

// Delete removes a user.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.accounts.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "delete user", err)
		return
	}
	respond.NoContent(w)
}

// Toggle flips a user's active flag.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Toggle(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "toggle user", err)
		return
	}
	respond.OK(w, user)
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, middleware.GetUser(r.Context()))
}

// ChangePassword changes the caller's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in accounts.PasswordInput
	if err := respond.Decode(w, r, &in); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), in); err != nil {
		fail(w, "change password", err)
		return
	}
	respond.NoContent(w)
}

// Subscriptions replaces the alert subscriptions of a user (admin or self).
func (h *Handler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionsRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	user, err := h.accounts.SetSubscriptions(r.Context(), chi.URLParam(r, "id"), req.AlertIDs)
	if err != nil {
		fail(w, "update subscriptions", err)
		return
	}
	respond.OK(w, user)
}

// fail maps account errors to API errors.
func fail(w http.ResponseWriter, op string, err error) {
	var fields accounts.FieldErrors
	switch {
	case errors.As(err, &fields):
		respond.Fail(w, respond.Validation("validation failed", fields))
	case errors.Is(err, accounts.ErrNotFound):
		respond.Fail(w, respond.NotFound("user not found"))
	case errors.Is(err, accounts.ErrConflict), errors.Is(err, accounts.ErrLastAdmin):
		respond.Fail(w, respond.Conflict(err.Error()))
	case errors.Is(err, accounts.ErrSelf):
		respond.Fail(w, respond.Forbidden(err.Error()))
	case errors.Is(err, accounts.ErrWrongPassword):
		respond.Fail(w, respond.Validation(err.Error(), map[string]string{"current_password": err.Error()}))
	default:
		respond.Internal(w, op, err)
	}
}

