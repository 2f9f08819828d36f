// Package provider defines the error classification contract shared by all
// AI provider implementations. The core never inspects provider-specific
// errors; it branches only on these sentinels.
package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimited indicates the provider returned a rate limit response.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrOverloaded indicates the provider is temporarily unavailable or
	// overloaded.
	ErrOverloaded = errors.New("provider unavailable")

	// ErrTimeout indicates the request to the provider timed out.
	ErrTimeout = errors.New("provider timeout")

	// ErrAuth indicates the provider rejected the credentials.
	ErrAuth = errors.New("provider auth failed")

	// ErrInvalidInput indicates the provider rejected the request payload.
	ErrInvalidInput = errors.New("provider invalid input")
)

// IsTransient reports whether the error is temporary and the request can be
// retried with backoff. Auth and input errors are permanent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrOverloaded) ||
		errors.Is(err, ErrTimeout)
}
