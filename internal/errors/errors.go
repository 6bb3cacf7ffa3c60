package errors

import (
	"errors"
	"fmt"
)

// Common error types for the authentication core, grouped by the failure
// taxonomy: validation, authentication failure, dependency failure, and
// configuration. Validation and configuration errors are rejected before any
// side effect; authentication failures are counted and surfaced generically;
// dependency failures always resolve toward the most conservative outcome.
var (
	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrMissingField   = errors.New("missing required field")

	// Authentication failures
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrMFAFailed          = errors.New("mfa verification failed")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrKeyNotFound         = errors.New("signing key not found")

	// Dependency failures
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrDependencyTimeout     = errors.New("dependency timeout")

	// Configuration errors (fatal at startup, never per-request)
	ErrConfiguration = errors.New("configuration error")

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

// Retryable reports whether the error represents a transient dependency
// failure that the caller may retry, as opposed to a definitive denial.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependencyUnavailable) || errors.Is(err, ErrDependencyTimeout)
}
