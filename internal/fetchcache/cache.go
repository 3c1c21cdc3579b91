// Package fetchcache is a short-lived, per-session cache for polling the
// aggregation endpoints. Concurrent fetches of the same key share one request.
package fetchcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Cache struct {
	client *http.Client
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	body  json.RawMessage
	until time.Time
}

type Option func(*Cache)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) { c.client = client }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type fetchOptions struct {
	force bool
}

type FetchOption func(*fetchOptions)

// WithForceRefresh skips a still-valid entry. An in-flight fetch is still shared.
func WithForceRefresh() FetchOption {
	return func(fo *fetchOptions) { fo.force = true }
}

// StatusError is returned for non-2xx responses, which are never cached.
type StatusError struct {
	URL        string
	StatusCode int
}

func (se *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", se.URL, se.StatusCode)
}

func (c *Cache) lookup(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.until) {
		return nil, false
	}
	return e.body, true
}

func (c *Cache) Fetch(ctx context.Context, key, url string, ttl time.Duration, opts ...FetchOption) (json.RawMessage, error) {
	fo := &fetchOptions{}
	for _, opt := range opts {
		opt(fo)
	}

	if !fo.force {
		if body, ok := c.lookup(key); ok {
			return body, nil
		}
	}

	// The request is shared, so it runs detached from the caller that started
	// it and is bounded by the client timeout instead.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		body, err := c.get(context.Background(), url)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{body: body, until: c.now().Add(ttl)}
		c.mu.Unlock()

		return body, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

func (c *Cache) get(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	bb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if !json.Valid(bb) {
		return nil, fmt.Errorf("GET %s: response is not json", url)
	}

	return json.RawMessage(bb), nil
}

// Invalidate drops every cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// FetchJSON is Fetch followed by decoding into T.
func FetchJSON[T any](ctx context.Context, c *Cache, key, url string, ttl time.Duration, opts ...FetchOption) (T, error) {
	var out T

	body, err := c.Fetch(ctx, key, url, ttl, opts...)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decoding %s: %w", key, err)
	}
	return out, nil
}
