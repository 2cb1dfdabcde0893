package accounts

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{2,31}$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

const maxNameLength = 100

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, field := range slices.Sorted(maps.Keys(fe)) {
		parts = append(parts, field+": "+fe[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func (fe FieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) string {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return "username is required"
	case len(username) < 3:
		return "username must be at least 3 characters"
	case len(username) > 32:
		return "username must be at most 32 characters"
	case !usernameRegex.MatchString(username):
		return "username must start with a letter and contain only letters, numbers, dots, underscores, or hyphens"
	}
	return ""
}

// ValidateEmail checks an email address.
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return "email is required"
	case len(email) > 255:
		return "email must be at most 255 characters"
	case !emailRegex.MatchString(email):
		return "invalid email format"
	}
	return ""
}

// ValidateRole parses a role name.
func ValidateRole(role string) (models.Role, string) {
	switch r := models.Role(strings.ToLower(strings.TrimSpace(role))); r {
	case models.RoleAdmin, models.RoleOperator, models.RoleViewer:
		return r, ""
	}
	return "", "role must be one of: admin, operator, viewer"
}

// ValidatePermissions rejects unknown permission strings and returns the
// deduplicated list.
func ValidatePermissions(perms []string) ([]string, string) {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if !slices.Contains(models.Permissions, p) {
			return nil, "unknown permission " + p
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, ""
}
