package directory

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("user not found")
	ErrInviteNotFound     = errors.New("invite not found")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDeactivated        = errors.New("user account is deactivated")
	ErrSelfInvite         = errors.New("cannot invite yourself")

	// ErrFriendNotFound is returned when the other side of a connection is
	// unknown. It also matches ErrNotFound.
	ErrFriendNotFound = fmt.Errorf("friend %w", ErrNotFound)
)

// ValidationError carries a caller-facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
