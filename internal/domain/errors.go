package domain

import "errors"

// Domain errors
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrMappingNotFound      = errors.New("no creator mapping for email")
	ErrMemberNotFound       = errors.New("member not found")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrChannelNotConfigured = errors.New("leaderboard channel not configured")
	ErrMissingConfig        = errors.New("missing required configuration")
	ErrInternalError        = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMappingNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrChannelNotFound)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
