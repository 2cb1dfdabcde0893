package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

// ShowUsers renders user management (admin only).
func (h *Handler) ShowUsers(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, pages.UserForm{}, nil)
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, form pages.UserForm, errs map[string]string) {
	q := r.URL.Query()
	query := accounts.Query{Search: q.Get("q")}
	if role, msg := accounts.ValidateRole(q.Get("role")); msg == "" && q.Get("role") != "" {
		query.Role = role
	}
	users, err := h.accounts.List(r.Context(), query)
	if err != nil {
		h.serverError(w, "list users", err)
		return
	}
	h.render(w, r, status, pages.Users(h.base(r), pages.UsersView{
		Users:  users,
		Search: query.Search,
		Role:   string(query.Role),
		SelfID: currentUser(r).ID,
		Form:   form,
		Errors: errs,
	}))
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := accounts.CreateInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Role:            r.PostFormValue("role"),
	}
	form := pages.UserForm{Username: in.Username, Email: in.Email, Role: in.Role}

	user, err := h.accounts.Create(r.Context(), in)
	var fieldErrs accounts.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		h.renderUsers(w, r, http.StatusBadRequest, form, fieldErrs)
	case errors.Is(err, accounts.ErrConflict):
		h.renderUsers(w, r, http.StatusConflict, form, map[string]string{"username": "username or email already in use"})
	case err != nil:
		h.serverError(w, "create user", err)
	default:
		h.redirect(w, r, "/users", session.FlashSuccess, "User "+user.Username+" created")
	}
}

func (h *Handler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Toggle(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		h.userActionFailed(w, r, "toggle user", err)
		return
	}
	msg := user.Username + " deactivated"
	if user.Active {
		msg = user.Username + " activated"
	}
	h.redirect(w, r, "/users", session.FlashSuccess, msg)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id")); err != nil {
		h.userActionFailed(w, r, "delete user", err)
		return
	}
	h.redirect(w, r, "/users", session.FlashSuccess, "User deleted")
}

func (h *Handler) userActionFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		h.NotFound(w, r)
	case errors.Is(err, accounts.ErrSelf), errors.Is(err, accounts.ErrLastAdmin):
		h.redirect(w, r, "/users", session.FlashError, err.Error())
	default:
		h.serverError(w, op, err)
	}
}

