package errors

import (
	"errors"
	"fmt"
)

// Common error types for the back-office console
var (
	// Session errors
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrSessionRejected = errors.New("session rejected")
	ErrCorruptSession  = errors.New("corrupt persisted session")
	ErrSessionNotFound = errors.New("session not found")

	// Transport errors
	ErrTransport = errors.New("transport failure")

	// Backend errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidRequest     = errors.New("invalid request")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}
