package session

import "errors"

var (
	// ErrAlreadyInitialized guards against a second Initialize call.
	// Initialization is a once-per-process operation.
	ErrAlreadyInitialized = errors.New("session manager already initialized")

	// ErrSignInInFlight means another sign-in attempt has not resolved
	// yet. Attempts are never interleaved; two concurrently-resolving
	// flows could race to set contradictory session state.
	ErrSignInInFlight = errors.New("another sign-in attempt is in flight")

	// ErrEmptyToken means a blank token was submitted for manual sign-in.
	ErrEmptyToken = errors.New("empty token")
)
