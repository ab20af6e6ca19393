package identity

import "errors"

// ErrAuthFailure wraps every identity error so callers can map them to 401.
var ErrAuthFailure = errors.New("authentication failed")

// Specific failure kinds. They are always returned wrapped in ErrAuthFailure.
var (
	ErrInvalidUsername    = errors.New("username must be an email address")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrNotConfirmed       = errors.New("user is not confirmed")
	ErrAlreadyConfirmed   = errors.New("user is already confirmed")
	ErrInvalidCode        = errors.New("invalid confirmation code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)
