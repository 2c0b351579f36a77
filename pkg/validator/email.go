package validator

import (
	"errors"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

var (
	// ErrEmptyEmail indicates the address is empty
	ErrEmptyEmail = errors.New("email address cannot be empty")

	// ErrInvalidEmail indicates the address is not a valid RFC 5322 address
	ErrInvalidEmail = errors.New("email address is not valid")
)

// EmailValidator validates operations recipient addresses
type EmailValidator struct {
	validate *playground.Validate
}

// NewEmailValidator creates a new email validator instance
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{validate: playground.New()}
}

// Validate checks a single address
func (v *EmailValidator) Validate(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	if err := v.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// Sanitize lower-cases and trims an address
func (v *EmailValidator) Sanitize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FilterValid returns the sanitized valid addresses and the rejected ones
func (v *EmailValidator) FilterValid(emails []string) (valid []string, rejected []string) {
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if err := v.Validate(email); err != nil {
			rejected = append(rejected, email)
			continue
		}
		clean := v.Sanitize(email)
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		valid = append(valid, clean)
	}
	return valid, rejected
}
