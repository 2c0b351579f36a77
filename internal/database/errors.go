package database

import (
	"errors"

	"github.com/lib/pq"
)

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

// ErrAdminEmailTaken is returned when an admin with the same email already exists
var ErrAdminEmailTaken = errors.New("admin user with this email already exists")

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
