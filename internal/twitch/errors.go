package twitch

import (
	"errors"
	"fmt"
)

type ServerError struct {
	StatusCode int
}

func (se ServerError) Error() string {
	return fmt.Sprintf("error from twitch: %d", se.StatusCode)
}

var (
	// ErrTimeout .
	ErrTimeout = errors.New("timeout")
	// ErrRateLimited .
	ErrRateLimited = errors.New("rate limited")
	// ErrUserNotFound .
	ErrUserNotFound = errors.New("user not found")
	// ErrMalformedResponse is returned when a payload does not have the documented shape.
	ErrMalformedResponse = errors.New("malformed response")
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
