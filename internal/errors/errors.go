// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., an already registered identifier).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the caller exhausted its request quota for the
	// current abuse window.
	ErrRateLimited = errors.New("rate limited")

	// ErrVaultUnavailable indicates the secret vault could not be reached.
	ErrVaultUnavailable = errors.New("vault unavailable")

	// ErrVaultAuth indicates the secret vault rejected our credentials.
	ErrVaultAuth = errors.New("vault authentication failed")

	// ErrSecretNotFound indicates the named secret is absent or expired.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrDecryption indicates a payload could not be decrypted because the
	// input is malformed or truncated.
	ErrDecryption = errors.New("decryption failed")

	// ErrStoreUnavailable indicates the record store could not serve the request.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
