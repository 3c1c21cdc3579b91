package domain

import "errors"

var (
	// ErrNotFound will be returned if the requested item is not found
	ErrNotFound = errors.New("requested item was not found")
	// ErrConfiguration will be returned if a required credential or connection parameter is missing
	ErrConfiguration = errors.New("missing configuration")
)

// ValidationError wraps caller-supplied input that failed a documented constraint.
type ValidationError struct {
	Err error
}

func (ve *ValidationError) Error() string {
	return ve.Err.Error()
}

func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
