package auth

import "errors"

var (
	// ErrMissingCredentials indicates no credential was presented
	ErrMissingCredentials = errors.New("authentication required")

	// ErrInvalidCredentials indicates a credential was presented but did
	// not resolve to any identity
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates a resolved identity lacks the privilege
	// the operation requires
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingGlobalKey indicates the process was started without a
	// master API key, which is a deployment error rather than a request
	// error
	ErrMissingGlobalKey = errors.New("master API key is not configured")

	// ErrEmailNotVerified indicates a login attempt on an unverified
	// account
	ErrEmailNotVerified = errors.New("email address not verified")

	// ErrSubscriptionExpired indicates the account's subscription period
	// has lapsed
	ErrSubscriptionExpired = errors.New("subscription expired")

	// ErrSessionInvalid indicates a session token that no longer maps to
	// a live account
	ErrSessionInvalid = errors.New("session invalid")

	// ErrTokenExpired indicates a verification or reset token past its
	// validity window
	ErrTokenExpired = errors.New("token expired")
)
