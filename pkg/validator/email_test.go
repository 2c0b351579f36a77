package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEmailValidator(t *testing.T) {
	validator := NewEmailValidator()
	assert.NotNil(t, validator)
}

func TestValidate_ValidEmails(t *testing.T) {
	validator := NewEmailValidator()

	validEmails := []struct {
		input string
		name  string
	}{
		{"ops@parkspot.ae", "Plain address"},
		{"  ops@parkspot.ae  ", "Surrounding spaces"},
		{"first.last+bookings@example.com", "Plus tag"},
	}

	for _, tc := range validEmails {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, validator.Validate(tc.input))
		})
	}
}

func TestValidate_InvalidEmails(t *testing.T) {
	validator := NewEmailValidator()

	invalidEmails := []struct {
		input       string
		expectedErr error
		name        string
	}{
		{"", ErrEmptyEmail, "Empty"},
		{"   ", ErrEmptyEmail, "Whitespace only"},
		{"ops", ErrInvalidEmail, "No domain"},
		{"ops@", ErrInvalidEmail, "Missing host"},
		{"@parkspot.ae", ErrInvalidEmail, "Missing local part"},
	}

	for _, tc := range invalidEmails {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.input)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestFilterValid(t *testing.T) {
	validator := NewEmailValidator()

	valid, rejected := validator.FilterValid([]string{
		"Ops@ParkSpot.ae",
		"ops@parkspot.ae",
		"not-an-email",
		"finance@parkspot.ae",
	})

	assert.Equal(t, []string{"ops@parkspot.ae", "finance@parkspot.ae"}, valid)
	assert.Equal(t, []string{"not-an-email"}, rejected)
}
