package models

import (
	"slices"
	"time"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Permission strings granted on top of the role.
const (
	PermissionManageAlerts  = "alerts:manage"
	PermissionManageUsers   = "users:manage"
	PermissionViewReports   = "reports:view"
	PermissionMoveReports   = "reports:move"
	PermissionManageCatalog = "catalog:manage"
)

// Permissions lists every grantable permission.
var Permissions = []string{
	PermissionManageAlerts,
	PermissionManageUsers,
	PermissionViewReports,
	PermissionMoveReports,
	PermissionManageCatalog,
}

// User is a dashboard user and notification subscriber.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	Active        bool      `json:"active"`
	Permissions   []string  `json:"permissions"`
	Subscriptions []string  `json:"subscriptions"`
	LastLoginAt   time.Time `json:"last_login_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewUser creates an active User with initialized timestamps.
func NewUser(username, email string, role Role) *User {
	now := time.Now()
	return &User{
		Username:      username,
		Email:         email,
		Role:          role,
		Active:        true,
		Permissions:   DefaultPermissions(role),
		Subscriptions: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DefaultPermissions returns the permissions a role starts with.
func DefaultPermissions(role Role) []string {
	switch role {
	case RoleAdmin:
		return []string{PermissionManageAlerts, PermissionManageUsers, PermissionViewReports, PermissionMoveReports, PermissionManageCatalog}
	case RoleOperator:
		return []string{PermissionManageAlerts, PermissionViewReports}
	default:
		return []string{PermissionViewReports}
	}
}

// IsAdmin returns true if user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanWrite returns true if user can modify resources.
func (u *User) CanWrite() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}

// HasPermission reports whether the user holds perm, admins hold all.
func (u *User) HasPermission(perm string) bool {
	return u.IsAdmin() || slices.Contains(u.Permissions, perm)
}

// IsSubscribed reports whether the user subscribes to an alert.
func (u *User) IsSubscribed(alertID string) bool {
	return slices.Contains(u.Subscriptions, alertID)
}

// ParseRole converts a string to Role.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	case "operator":
		return RoleOperator
	default:
		return RoleViewer
	}
}
