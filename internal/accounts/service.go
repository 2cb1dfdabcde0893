// Package accounts manages dashboard users: listing, creation, edits,
// activation, passwords and alert subscriptions. Both the JSON API and the
// web UI go through it.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrConflict      = errors.New("user already exists")
	ErrSelf          = errors.New("you cannot deactivate or delete your own account")
	ErrLastAdmin     = errors.New("at least one active admin is required")
	ErrWrongPassword = errors.New("current password is incorrect")
)

// SessionEnder ends the web sessions of a user.
type SessionEnder interface {
	DeleteForUser(userID string) int
}

// Query filters the user list. A nil Active matches both.
type Query struct {
	Search string
	Role   models.Role
	Active *bool
}

// CreateInput is the new-user form.
type CreateInput struct {
	Username        string   `json:"username"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	Role            string   `json:"role"`
	Permissions     []string `json:"permissions"`
}

// UpdateInput is the edit-user form. Empty strings and a nil permission
// list leave the field unchanged.
type UpdateInput struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// PasswordInput changes the caller's password.
type PasswordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
	Confirm string `json:"confirm_password"`
}

// Service implements user management on top of storage.
type Service struct {
	users    storage.UserRepository
	alerts   storage.AlertRepository
	tokens   storage.TokenRepository
	sessions SessionEnder
}

// NewService creates an accounts service. sessions may be nil.
func NewService(store storage.Storage, sessions SessionEnder) *Service {
	return &Service{
		users:    store.Users(),
		alerts:   store.Alerts(),
		tokens:   store.Tokens(),
		sessions: sessions,
	}
}

// List returns users matching q ordered by username.
func (s *Service) List(ctx context.Context, q Query) ([]*models.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]*models.User, 0, len(all))
	for _, u := range all {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.Active != nil && u.Active != *q.Active {
			continue
		}
		out = append(out, u)
	}
	slices.SortStableFunc(out, func(a, b *models.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Create validates in and stores a new active user.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	errs := FieldErrors{}
	if msg := ValidateUsername(in.Username); msg != "" {
		errs.add("username", msg)
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		errs.add("email", msg)
	}
	if len(strings.TrimSpace(in.Name)) > maxNameLength {
		errs.add("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if err := auth.ValidateNewPassword(in.Password, in.ConfirmPassword); err != nil {
		field := "password"
		if errors.Is(err, auth.ErrPasswordMismatch) {
			field = "confirm_password"
		}
		errs.add(field, err.Error())
	}
	role, msg := ValidateRole(in.Role)
	if msg != "" {
		errs.add("role", msg)
	}
	var perms []string
	if in.Permissions != nil {
		if perms, msg = ValidatePermissions(in.Permissions); msg != "" {
			errs.add("permissions", msg)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := s.checkUnique(ctx, "", username, email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(username, email, role)
	user.ID = uuid.New().String()
	user.Name = strings.TrimSpace(in.Name)
	user.PasswordHash = hash
	if perms != nil {
		user.Permissions = perms
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.Printf("user created: %s (%s)", user.Username, user.ID)
	return user, nil
}

// Update edits name, email, role and permissions. Changing the role without
// an explicit permission list resets permissions to the role defaults.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	errs := FieldErrors{}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if msg := ValidateEmail(email); msg != "" {
			errs.add("email", msg)
		}
	}
	if len(strings.TrimSpace(in.Name)) > maxNameLength {
		errs.add("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	role := user.Role
	if in.Role != "" {
		var msg string
		if role, msg = ValidateRole(in.Role); msg != "" {
			errs.add("role", msg)
		}
	}
	var perms []string
	if in.Permissions != nil {
		var msg string
		if perms, msg = ValidatePermissions(in.Permissions); msg != "" {
			errs.add("permissions", msg)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if email != "" && !strings.EqualFold(email, user.Email) {
		if err := s.checkUnique(ctx, user.ID, "", email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if user.Role == models.RoleAdmin && role != models.RoleAdmin && user.Active {
		if err := s.ensureOtherAdmin(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	switch {
	case perms != nil:
		user.Permissions = perms
	case role != user.Role:
		user.Permissions = models.DefaultPermissions(role)
	}
	user.Role = role
	user.UpdatedAt = time.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Toggle flips the active flag of id, and only of id. Deactivated users lose
// their refresh tokens and sessions.
func (s *Service) Toggle(ctx context.Context, actorID, id string) (*models.User, error) {
	if actorID == id {
		return nil, ErrSelf
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Active && user.Role == models.RoleAdmin {
		if err := s.ensureOtherAdmin(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	user.Active = !user.Active
	if err := s.users.SetActive(ctx, user.ID, user.Active); err != nil {
		return nil, fmt.Errorf("set user active: %w", err)
	}
	if !user.Active {
		s.signOut(ctx, user.ID)
	}
	log.Printf("user %s active=%t", user.Username, user.Active)
	return user, nil
}

// Delete removes id. Users cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrSelf
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Active && user.Role == models.RoleAdmin {
		if err := s.ensureOtherAdmin(ctx, user.ID); err != nil {
			return err
		}
	}
	s.signOut(ctx, user.ID)
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	log.Printf("user deleted: %s (%s)", user.Username, user.ID)
	return nil
}

// ChangePassword verifies the current password and stores the new one.
// Refresh tokens are revoked so other devices must log in again.
func (s *Service) ChangePassword(ctx context.Context, id string, in PasswordInput) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if in.Current == "" {
		return FieldErrors{"current_password": "current password is required"}
	}
	if err := auth.ValidateNewPassword(in.New, in.Confirm); err != nil {
		field := "new_password"
		if errors.Is(err, auth.ErrPasswordMismatch) {
			field = "confirm_password"
		}
		return FieldErrors{field: err.Error()}
	}
	if !auth.CheckPassword(user.PasswordHash, in.Current) {
		return ErrWrongPassword
	}

	hash, err := auth.HashPassword(in.New)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		log.Printf("change password warning: revoke tokens: %v", err)
	}
	log.Printf("password changed: user %s", user.Username)
	return nil
}

// SetPassword replaces a password without the current one. Used by the CLI.
func (s *Service) SetPassword(ctx context.Context, id, password, confirm string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.ValidateNewPassword(password, confirm); err != nil {
		return FieldErrors{"password": err.Error()}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.signOut(ctx, user.ID)
	return nil
}

// SetSubscriptions replaces the alert subscriptions of id. Every alert must
// exist.
func (s *Service) SetSubscriptions(ctx context.Context, id string, alertIDs []string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	subs := make([]string, 0, len(alertIDs))
	for _, alertID := range alertIDs {
		alertID = strings.TrimSpace(alertID)
		if alertID == "" || slices.Contains(subs, alertID) {
			continue
		}
		a, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			return nil, fmt.Errorf("get alert: %w", err)
		}
		if a == nil {
			return nil, FieldErrors{"subscriptions": "unknown alert " + alertID}
		}
		subs = append(subs, alertID)
	}

	user.Subscriptions = subs
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update subscriptions: %w", err)
	}
	return user, nil
}

func (s *Service) checkUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		existing, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			return fmt.Errorf("%w: username %s is taken", ErrConflict, username)
		}
	}
	if email != "" {
		existing, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			return fmt.Errorf("%w: email %s is taken", ErrConflict, email)
		}
	}
	return nil
}

func (s *Service) ensureOtherAdmin(ctx context.Context, exceptID string) error {
	all, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range all {
		if u.ID != exceptID && u.Active && u.Role == models.RoleAdmin {
			return nil
		}
	}
	return ErrLastAdmin
}

func (s *Service) signOut(ctx context.Context, userID string) {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		log.Printf("revoke tokens error: %v", err)
	}
	if s.sessions != nil {
		s.sessions.DeleteForUser(userID)
	}
}
