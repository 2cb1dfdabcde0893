package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// Handler serves the login, refresh and logout endpoints.
type Handler struct {
	auth   *Authenticator
	jwt    *JWTService
	tokens *TokenService
}

// NewHandler creates an auth handler.
func NewHandler(auth *Authenticator, jwt *JWTService, tokens *TokenService) *Handler {
	return &Handler{auth: auth, jwt: jwt, tokens: tokens}
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

// LoginRequest is the login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the refresh and logout body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges credentials for an access and refresh token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if req.Username == "" || req.Password == "" {
		respond.Fail(w, respond.BadRequest("username and password required"))
		return
	}

	user, err := h.auth.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, ErrLocked):
		respond.Fail(w, respond.ErrLocked)
		return
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInactive):
		log.Printf("login failed: %s: %v", req.Username, err)
		respond.Fail(w, respond.ErrUnauthorized)
		return
	case err != nil:
		respond.Internal(w, "login", err)
		return
	}

	resp, err := h.issue(r, user, "")
	if err != nil {
		respond.Internal(w, "login", err)
		return
	}
	log.Printf("login success: user %s", user.Username)
	respond.OK(w, resp)
}

// Refresh rotates a refresh token and issues a new access token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := respond.Decode(w, r, &req); err != nil || req.RefreshToken == "" {
		respond.Fail(w, respond.BadRequest("refresh_token required"))
		return
	}

	user, err := h.tokens.Validate(r.Context(), req.RefreshToken)
	if errors.Is(err, ErrInvalidRefreshToken) {
		respond.Fail(w, respond.ErrInvalidToken)
		return
	}
	if err != nil {
		respond.Internal(w, "refresh token", err)
		return
	}

	resp, err := h.issue(r, user, req.RefreshToken)
	if err != nil {
		respond.Internal(w, "refresh token", err)
		return
	}
	respond.OK(w, resp)
}

// Logout revokes a refresh token. Unknown tokens are not an error.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := respond.Decode(w, r, &req); err != nil || req.RefreshToken == "" {
		respond.Fail(w, respond.BadRequest("refresh_token required"))
		return
	}
	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		log.Printf("logout error: %v", err)
	}
	respond.NoContent(w)
}

// issue creates an access token and a refresh token, rotating old when set.
func (h *Handler) issue(r *http.Request, user *models.User, old string) (*TokenResponse, error) {
	access, err := h.jwt.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()

	var refresh string
	if old != "" {
		refresh, err = h.tokens.Rotate(r.Context(), old, user.ID)
	} else {
		refresh, err = h.tokens.Create(r.Context(), user.ID)
	}
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    h.jwt.TTLSeconds(),
		TokenType:    "Bearer",
		User:         user,
	}, nil
}
