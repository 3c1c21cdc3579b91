// Package oauth keeps client-credentials bearer tokens for upstream platforms.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/valyala/fastjson"
	"golang.org/x/sync/singleflight"
)

const (
	reuseMargin   = 15 * time.Second
	expiryMargin  = 30 * time.Second
	minTTLSeconds = 60
	defaultTTL    = 3600

	exchangeTimeout = 10 * time.Second
)

// TokenCache memoizes one platform's bearer token. It is safe for concurrent
// use and shares a single exchange between concurrent callers.
type TokenCache struct {
	platform  string
	creds     Credentials
	staticKey string
	attempts  []Attempt
	client    *http.Client
	now       func() time.Time
	parser    fastjson.ParserPool

	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

type Option func(*TokenCache)

func WithHTTPClient(client *http.Client) Option {
	return func(tc *TokenCache) { tc.client = client }
}

func WithClock(now func() time.Time) Option {
	return func(tc *TokenCache) { tc.now = now }
}

// WithStaticKey makes Token return key without ever exchanging credentials.
func WithStaticKey(key string) Option {
	return func(tc *TokenCache) { tc.staticKey = key }
}

func NewTokenCache(platform string, creds Credentials, attempts []Attempt, opts ...Option) *TokenCache {
	tc := &TokenCache{
		platform: platform,
		creds:    creds,
		attempts: attempts,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(tc)
	}

	return tc
}

// Configured reports whether Token has any chance of succeeding.
func (tc *TokenCache) Configured() bool {
	return tc.staticKey != "" || !tc.creds.empty()
}

func (tc *TokenCache) ClientID() string {
	return tc.creds.ClientID
}

func (tc *TokenCache) cached() (string, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if tc.token == "" || !tc.expiresAt.After(tc.now().Add(reuseMargin)) {
		return "", false
	}
	return tc.token, true
}

func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	if tc.staticKey != "" {
		return tc.staticKey, nil
	}

	if tc.creds.empty() {
		return "", &ConfigurationError{Platform: tc.platform}
	}

	if token, ok := tc.cached(); ok {
		return token, nil
	}

	// The exchange is shared, so it must outlive whichever caller started it.
	ch := tc.group.DoChan(tc.platform, func() (interface{}, error) {
		if token, ok := tc.cached(); ok {
			return token, nil
		}

		ectx, cancel := context.WithTimeout(context.Background(), exchangeTimeout)
		defer cancel()

		return tc.exchange(ectx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call exchanges again.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.token = ""
	tc.expiresAt = time.Time{}
}

func (tc *TokenCache) exchange(ctx context.Context) (string, error) {
	lastErr := &UpstreamAuthError{Platform: tc.platform, Err: errors.New("no exchange attempts configured")}

	for _, attempt := range tc.attempts {
		token, ttl, err := tc.try(ctx, attempt)
		if err != nil {
			if errors.As(err, &lastErr) {
				continue
			}
			lastErr = &UpstreamAuthError{Platform: tc.platform, Err: err}
			continue
		}

		tc.mu.Lock()
		tc.token = token
		tc.expiresAt = tc.now().Add(time.Duration(ttl)*time.Second - expiryMargin)
		tc.mu.Unlock()

		return token, nil
	}

	return "", lastErr
}

func (tc *TokenCache) try(ctx context.Context, attempt Attempt) (string, int, error) {
	req, err := attempt(ctx, tc.creds)
	if err != nil {
		return "", 0, err
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return "", 0, redactURL(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", 0, &UpstreamAuthError{Platform: tc.platform, StatusCode: resp.StatusCode}
	}

	bb, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	parser := tc.parser.Get()
	defer tc.parser.Put(parser)

	val, err := parser.ParseBytes(bb)
	if err != nil {
		return "", 0, fmt.Errorf("decoding token response: %w", err)
	}

	token := string(val.GetStringBytes("access_token"))
	if token == "" {
		token = string(val.GetStringBytes("token"))
	}
	if token == "" {
		return "", 0, errors.New("token missing in response")
	}

	ttl := defaultTTL
	if val.Exists("expires_in") {
		ttl = val.GetInt("expires_in")
	}
	if ttl < minTTLSeconds {
		ttl = minTTLSeconds
	}

	return token, ttl, nil
}

// redactURL drops the request URL from transport errors so credentials that
// ended up in it never reach logs or callers.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s token endpoint: %w", ue.Op, ue.Err)
	}
	return err
}
