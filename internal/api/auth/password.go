package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 12

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

const specialChars = "!@#$%^&*()-_=+[]{}|;:',.<>?/`~\"\\"

// PasswordError lists every complexity rule a password breaks.
type PasswordError struct {
	Messages []string
}

func (e *PasswordError) Error() string {
	return strings.Join(e.Messages, "; ")
}

type passwordRule struct {
	message string
	match   func(rune) bool
}

var passwordRules = []passwordRule{
	{"password must contain at least 1 uppercase letter", unicode.IsUpper},
	{"password must contain at least 1 lowercase letter", unicode.IsLower},
	{"password must contain at least 1 digit", unicode.IsDigit},
	{"password must contain at least 1 special character (!@#$%^&*...)", func(r rune) bool {
		return strings.ContainsRune(specialChars, r)
	}},
}

// ValidatePassword checks length and character classes and returns a
// *PasswordError naming all failures.
func ValidatePassword(password string) error {
	var messages []string
	if len(password) < MinPasswordLength {
		messages = append(messages, "password must be at least 12 characters")
	}
	for _, rule := range passwordRules {
		if !strings.ContainsFunc(password, rule.match) {
			messages = append(messages, rule.message)
		}
	}
	if len(messages) > 0 {
		return &PasswordError{Messages: messages}
	}
	return nil
}

// ValidateNewPassword checks the confirmation first, then complexity. Only
// the first failure is returned so it fits a single form field.
func ValidateNewPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := ValidatePassword(password); err != nil {
		var perr *PasswordError
		if errors.As(err, &perr) {
			return errors.New(perr.Messages[0])
		}
		return err
	}
	return nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
