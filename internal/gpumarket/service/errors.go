package service

import "errors"

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotEnoughBalance   = errors.New("not enough balance")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrDuplicateEvent     = errors.New("payment event already processed")
	ErrProvisioning       = errors.New("partner order creation failed")
)

// ValidationError is returned for rejected input. Its message is meant for
// the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
