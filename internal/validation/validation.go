package validation

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	// ErrEmailRequired is returned when the email is empty
	ErrEmailRequired = errors.New("email is required")

	// ErrEmailTooLong is returned when the email exceeds the RFC limit
	ErrEmailTooLong = errors.New("email is too long")

	// ErrInvalidEmail is returned when the email fails to parse
	ErrInvalidEmail = errors.New("invalid email address")
)

// NormalizeEmail trims and lowercases an email address and validates its
// format. Every comparison and every stored value goes through this first.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if len(email) > 320 {
		return "", ErrEmailTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// NormalizeName trims a display name and caps its length.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
