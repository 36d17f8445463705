package data

import (
	"errors"
	"fmt"
)

const (
	UsersUsernameConstraint = "users_username_key"
	UsersEmailConstraint    = "users_email_key"
)

var (
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrNotFound                  = errors.New("not found")
)

// UniqueViolationError names the violated constraint. It matches
// ErrUniqueConstraintViolation with errors.Is.
type UniqueViolationError struct {
	Constraint string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUniqueConstraintViolation, e.Constraint)
}

func (e *UniqueViolationError) Unwrap() error {
	return ErrUniqueConstraintViolation
}
