package oauth

import (
	"fmt"

	"github.com/sasagram/streamlog/internal/domain"
)

// ConfigurationError is returned when a platform has neither client
// credentials nor a static API key.
type ConfigurationError struct {
	Platform string
}

func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: missing client credentials", ce.Platform)
}

func (ce *ConfigurationError) Unwrap() error {
	return domain.ErrConfiguration
}

// UpstreamAuthError is returned when every credential exchange attempt failed.
type UpstreamAuthError struct {
	Platform   string
	StatusCode int
	Err        error
}

func (uae *UpstreamAuthError) Error() string {
	if uae.Err != nil {
		return fmt.Sprintf("%s: token exchange failed: %v", uae.Platform, uae.Err)
	}
	return fmt.Sprintf("%s: token exchange failed with status %d", uae.Platform, uae.StatusCode)
}

func (uae *UpstreamAuthError) Unwrap() error {
	return uae.Err
}
