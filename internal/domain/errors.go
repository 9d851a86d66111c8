package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrFreeLimitUsed   = errors.New("free generation limit used")
	ErrInvalidPayment  = errors.New("invalid payment")
	ErrProviderFailure = errors.New("provider failure")

	// ErrConflict marks a conditional update that lost its race against
	// another writer. Callers treat it as "already resolved elsewhere",
	// never as a failure to surface.
	ErrConflict = errors.New("conflicting update")
)
