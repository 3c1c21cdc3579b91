package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

const (
	TwitchTokenURL = "https://id.twitch.tv/oauth2/token"
	KickTokenURL   = "https://id.kick.com/oauth/token"
)

type Credentials struct {
	ClientID     string
	ClientSecret string
}

func (c Credentials) empty() bool {
	return c.ClientID == "" || c.ClientSecret == ""
}

func (c Credentials) values() url.Values {
	return url.Values{
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
}

// Attempt builds one credential exchange request. Attempts are tried in
// order until one yields a token.
type Attempt func(ctx context.Context, creds Credentials) (*http.Request, error)

// FormAttempt posts the credentials form-encoded, which both Twitch and Kick
// accept. Keeping them out of the URL keeps them out of transport errors.
func FormAttempt(tokenURL string) Attempt {
	return func(ctx context.Context, creds Credentials) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(creds.values().Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

func JSONAttempt(tokenURL string) Attempt {
	return func(ctx context.Context, creds Credentials) (*http.Request, error) {
		body, err := json.Marshal(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
		})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}

func TwitchAttempts() []Attempt {
	return []Attempt{FormAttempt(TwitchTokenURL)}
}

func KickAttempts(tokenURL string) []Attempt {
	if tokenURL == "" {
		tokenURL = KickTokenURL
	}
	return []Attempt{FormAttempt(tokenURL), JSONAttempt(tokenURL)}
}
