package domain

import "errors"

// Authentication failures. NotFound, Expired and Inactive are distinct for
// logging but must be reported identically to clients.
var (
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExpired      = errors.New("token has expired")
	ErrPrincipalInactive = errors.New("user inactive or deleted")
)

// Login failures.
var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")
	ErrAccountDisabled    = errors.New("user account is disabled")
)

// IsTokenRejection reports whether err is one of the token validation failures.
func IsTokenRejection(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrPrincipalInactive)
}
