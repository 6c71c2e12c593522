package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these map to specific HTTP responses at the boundary.
var (
	// ErrAuthenticationFailed covers every bad-credential outcome: malformed
	// token, bad signature, unknown kid, wrong audience, expiry, missing
	// claims, consumed authorization code. It is deliberately opaque; the
	// cause is logged server-side but never surfaced to the caller.
	ErrAuthenticationFailed = errors.New("could not validate credentials")

	// ErrEntityNotFound is internal. Boundaries translate it to
	// ErrAuthenticationFailed when the missing entity backs a credential.
	ErrEntityNotFound = errors.New("entity does not exist")

	// ErrEntityAlreadyExists signals a uniqueness conflict on create.
	ErrEntityAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput signals a malformed request shape, distinct from
	// an authentication failure.
	ErrInvalidInput = errors.New("invalid input")

	// Key errors
	ErrKeyNotFound = errors.New("signing key not found")

	// Code/token errors. Internal only: the exchange boundary collapses all
	// of them to ErrAuthenticationFailed before returning to the caller.
	ErrCodeNotFound       = errors.New("authorization code not found")
	ErrRefreshTokenUsed   = errors.New("refresh token already redeemed")
	ErrInvalidRedirect    = errors.New("redirect_uri not registered for client")
	ErrClientNotFound     = errors.New("client not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ForbiddenError is returned when an authenticated caller lacks a required
// scope. Unlike authentication failures it names the missing requirement:
// telling a legitimate caller which permission they lack is safe and useful.
type ForbiddenError struct {
	Requirement string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s is needed to perform this action", e.Requirement)
}

// NewForbidden creates a ForbiddenError for the given requirement name.
func NewForbidden(requirement string) *ForbiddenError {
	return &ForbiddenError{Requirement: requirement}
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
