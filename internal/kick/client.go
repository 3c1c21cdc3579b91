// Package kick reads public channel data from the Kick API. The payload
// shapes are loosely documented, so avatar and live status are discovered
// heuristically.
package kick

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.kick.com/public/v1"

	maxDepth = 4
)

// TokenSource hands out bearer tokens. *oauth.TokenCache satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Configured() bool
}

type Client struct {
	tokens  TokenSource
	apiKey  string
	client  *http.Client
	pool    *fastjson.ParserPool
	statsd  statsd.ClientInterface
	baseURL string
}

type ClientOption func(*Client)

func WithClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithAPIKey sends key as x-api-key alongside the bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

func NewClient(tokens TokenSource, statsd statsd.ClientInterface, timeout time.Duration, opts ...ClientOption) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = 5 * time.Second

	c := &Client{
		tokens:  tokens,
		client:  &http.Client{Transport: otelhttp.NewTransport(t), Timeout: timeout},
		pool:    &fastjson.ParserPool{},
		statsd:  statsd,
		baseURL: DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type Creator struct {
	Slug      string
	IsLive    bool
	AvatarURL string
}

// fetch calls path and hands the parsed payload to fn while the parser is
// still checked out.
func (kc *Client) fetch(ctx context.Context, path string, query url.Values, fn func(*fastjson.Value) error) error {
	tags := []string{"url:" + path}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")

	// Without any credentials the public endpoints are tried anonymously.
	// Configured credentials that fail to produce a token are an error.
	if kc.tokens.Configured() {
		token, err := kc.tokens.Token(ctx)
		if err != nil {
			_ = kc.statsd.Incr("kick.api.auth_errors", tags, 1)
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if kc.apiKey != "" {
			req.Header.Set("x-api-key", kc.apiKey)
		}
	}

	start := time.Now()
	resp, err := kc.client.Do(req)

	_ = kc.statsd.Incr("kick.api.calls", tags, 0.1)
	_ = kc.statsd.Histogram("kick.api.latency", float64(time.Since(start).Milliseconds()), tags, 0.1)

	if err != nil {
		_ = kc.statsd.Incr("kick.api.errors", tags, 0.1)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		_ = kc.statsd.Incr("kick.api.errors", tags, 0.1)
		return fmt.Errorf("error from kick: %d", resp.StatusCode)
	}

	bb, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	parser := kc.pool.Get()
	defer kc.pool.Put(parser)

	val, err := parser.ParseBytes(bb)
	if err != nil {
		return fmt.Errorf("decoding kick response: %w", err)
	}

	return fn(val)
}

func firstDataItem(val *fastjson.Value) *fastjson.Value {
	arr := val.GetArray("data")
	if len(arr) == 0 || arr[0].Type() != fastjson.TypeObject {
		return nil
	}
	return arr[0]
}

// Creator looks up a channel by slug, then its owner, and digs the avatar and
// live flag out of whichever payload carries them.
func (kc *Client) Creator(ctx context.Context, slug string) (*Creator, error) {
	cr := &Creator{Slug: slug}

	var broadcasterID string
	err := kc.fetch(ctx, "/channels", url.Values{"slug": {slug}}, func(val *fastjson.Value) error {
		channel := firstDataItem(val)
		if channel != nil {
			if id := channel.Get("broadcaster_user_id"); id != nil {
				switch id.Type() {
				case fastjson.TypeNumber:
					broadcasterID = strconv.FormatInt(id.GetInt64(), 10)
				case fastjson.TypeString:
					broadcasterID = string(id.GetStringBytes())
				}
			}
		}

		cr.AvatarURL = findAvatarURL(val, 0)
		if live, ok := findLiveFlag(val, 0); ok {
			cr.IsLive = live
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if broadcasterID == "" {
		return cr, nil
	}

	err = kc.fetch(ctx, "/users", url.Values{"id": {broadcasterID}}, func(val *fastjson.Value) error {
		if avatar := findAvatarURL(val, 0); avatar != "" {
			cr.AvatarURL = avatar
		}
		return nil
	})
	if err != nil {
		return cr, nil
	}

	return cr, nil
}

var avatarKeys = []string{
	"profile_picture",
	"profile_picture_url",
	"profile_image",
	"profile_image_url",
	"avatar",
	"avatar_url",
	"picture",
	"photo",
	"user_profile_picture",
}

var avatarHints = []string{"avatar", "profile", "picture", "photo"}

func findAvatarURL(val *fastjson.Value, depth int) string {
	if val == nil || depth > maxDepth {
		return ""
	}

	switch val.Type() {
	case fastjson.TypeString:
		s := string(val.GetStringBytes())
		lower := strings.ToLower(s)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			return ""
		}
		for _, hint := range avatarHints {
			if strings.Contains(lower, hint) {
				return s
			}
		}
	case fastjson.TypeArray:
		arr, _ := val.Array()
		for _, item := range arr {
			if found := findAvatarURL(item, depth+1); found != "" {
				return found
			}
		}
	case fastjson.TypeObject:
		for _, key := range avatarKeys {
			if found := findAvatarURL(val.Get(key), depth+1); found != "" {
				return found
			}
		}

		obj, _ := val.Object()
		var found string
		obj.Visit(func(_ []byte, v *fastjson.Value) {
			if found == "" {
				found = findAvatarURL(v, depth+1)
			}
		})
		return found
	}

	return ""
}

var liveKeys = []string{"is_live", "isLive", "online", "is_streaming", "livestream", "stream", "stream_data"}

// findLiveFlag only trusts values found under a known live key. A nested
// stream object without its own flag counts as live.
func findLiveFlag(val *fastjson.Value, depth int) (bool, bool) {
	if val == nil || depth > maxDepth {
		return false, false
	}

	switch val.Type() {
	case fastjson.TypeArray:
		arr, _ := val.Array()
		for _, item := range arr {
			if live, ok := findLiveFlag(item, depth+1); ok {
				return live, true
			}
		}
	case fastjson.TypeObject:
		for _, key := range liveKeys {
			candidate := val.Get(key)
			if candidate == nil {
				continue
			}
			switch candidate.Type() {
			case fastjson.TypeTrue:
				return true, true
			case fastjson.TypeFalse:
				return false, true
			case fastjson.TypeNumber:
				return candidate.GetFloat64() > 0, true
			case fastjson.TypeObject:
				if live, ok := findLiveFlag(candidate, depth+1); ok {
					return live, true
				}
				return true, true
			}
		}

		obj, _ := val.Object()
		var live, found bool
		obj.Visit(func(_ []byte, v *fastjson.Value) {
			if !found {
				live, found = findLiveFlag(v, depth+1)
			}
		})
		return live, found
	}

	return false, false
}
