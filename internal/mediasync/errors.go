package mediasync

import (
	"errors"
	"fmt"
)

// UpstreamFetchError is returned when the platform refused either media list.
type UpstreamFetchError struct {
	Resource string
	Err      error
}

func (ufe *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", ufe.Resource, ufe.Err)
}

func (ufe *UpstreamFetchError) Unwrap() error {
	return ufe.Err
}

// ErrLeaseHeld means another process is already syncing.
var ErrLeaseHeld = errors.New("media sync already in progress")
