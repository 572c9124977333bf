package service

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the principal may not perform an action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned for a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoPhone is returned when an employee has no usable phone for login.
	ErrNoPhone = errors.New("employee has no phone number registered")
	// ErrValidation wraps every input validation failure.
	ErrValidation = errors.New("validation failed")
)

// StoreError reports a failed task-store call made while recreating a
// recurring task.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
