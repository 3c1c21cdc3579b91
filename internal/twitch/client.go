// Package twitch is a small Helix API client used for channel, stream, VOD,
// clip and schedule lookups.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/go-redis/redis/v8"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/domain"
)

const (
	DefaultBaseURL = "https://api.twitch.tv/helix"

	RequestRemainingBuffer = 5

	RateLimitRemainingHeader = "Ratelimit-Remaining"
	RateLimitResetHeader     = "Ratelimit-Reset"
)

// TokenSource hands out app access tokens. *oauth.TokenCache satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
	ClientID() string
}

type Client struct {
	tokens  TokenSource
	client  *http.Client
	tracer  *httptrace.ClientTrace
	pool    *fastjson.ParserPool
	statsd  statsd.ClientInterface
	redis   *redis.Client
	logger  *zap.Logger
	baseURL string
}

type RateLimitingInfo struct {
	Remaining float64
	Reset     time.Time
	Present   bool
}

type ClientOption func(*Client)

func WithClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewClient builds a Helix client. redis may be nil, in which case rate
// limit markers are not shared between processes.
func NewClient(tokens TokenSource, statsd statsd.ClientInterface, redis *redis.Client, timeout time.Duration, opts ...ClientOption) *Client {
	tracer := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				_ = statsd.Incr("twitch.api.connections.reused", []string{}, 0.1)
				if info.WasIdle {
					idleTime := float64(int64(info.IdleTime) / int64(time.Millisecond))
					_ = statsd.Histogram("twitch.api.connections.idle_time", idleTime, []string{}, 0.1)
				}
			} else {
				_ = statsd.Incr("twitch.api.connections.created", []string{}, 0.1)
			}
		},
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 8
	t.IdleConnTimeout = 60 * time.Second
	t.ResponseHeaderTimeout = 5 * time.Second

	client := &http.Client{Transport: otelhttp.NewTransport(t), Timeout: timeout}

	c := &Client{
		tokens:  tokens,
		client:  client,
		tracer:  tracer,
		pool:    &fastjson.ParserPool{},
		statsd:  statsd,
		redis:   redis,
		logger:  zap.NewNop(),
		baseURL: DefaultBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (tc *Client) doRequest(ctx context.Context, r *Request) ([]byte, *RateLimitingInfo, error) {
	req, err := r.HTTPRequest(httptrace.WithClientTrace(ctx, tc.tracer))
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()

	resp, err := tc.client.Do(req)

	_ = tc.statsd.Incr("twitch.api.calls", r.tags, 0.1)
	_ = tc.statsd.Histogram("twitch.api.latency", float64(time.Since(start).Milliseconds()), r.tags, 0.1)

	if err != nil {
		_ = tc.statsd.Incr("twitch.api.errors", r.tags, 0.1)
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "timeout awaiting response headers") {
			return nil, nil, ErrTimeout
		}
		return nil, nil, err
	}
	defer resp.Body.Close()

	rli := &RateLimitingInfo{Present: false}
	if _, ok := resp.Header[RateLimitRemainingHeader]; ok {
		rli.Present = true
		rli.Remaining, _ = strconv.ParseFloat(resp.Header.Get(RateLimitRemainingHeader), 64)
		reset, _ := strconv.ParseInt(resp.Header.Get(RateLimitResetHeader), 10, 64)
		rli.Reset = time.Unix(reset, 0)
	}

	if resp.StatusCode != 200 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = tc.statsd.Incr("twitch.api.errors", r.tags, 0.1)
		return nil, rli, ServerError{resp.StatusCode}
	}

	bb, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = tc.statsd.Incr("twitch.api.errors", r.tags, 0.1)
		return nil, rli, err
	}
	return bb, rli, nil
}

func (tc *Client) request(ctx context.Context, rh ResponseHandler, opts ...RequestOption) (interface{}, error) {
	rl, err := tc.isRateLimited(ctx)
	if err != nil {
		// An unreachable marker store must not take Helix down with it.
		_ = tc.statsd.Incr("twitch.ratelimit.check_errors", nil, 1)
		tc.logger.Warn("failed to check rate limit marker", zap.Error(err))
	}
	if rl {
		return nil, ErrRateLimited
	}

	token, err := tc.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]RequestOption{
		WithClientID(tc.tokens.ClientID()),
		WithToken(token),
	}, opts...)
	r := NewRequest(opts...)

	bb, rli, err := tc.doRequest(ctx, r)

	if rli != nil && rli.Present && rli.Remaining <= RequestRemainingBuffer {
		_ = tc.statsd.Incr("twitch.api.ratelimit", r.tags, 0.1)
		if err := tc.markRateLimited(ctx, rli.Remaining, time.Until(rli.Reset)); err != nil {
			tc.logger.Warn("failed to set rate limit marker", zap.Error(err))
		}
	}

	if err != nil {
		var se ServerError
		if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			tc.tokens.Invalidate()
		}
		return nil, err
	}

	parser := tc.pool.Get()
	defer tc.pool.Put(parser)

	val, err := parser.ParseBytes(bb)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return rh(val)
}

func (tc *Client) rateLimitKey() string {
	return fmt.Sprintf("twitch:%s:ratelimited", tc.tokens.ClientID())
}

func (tc *Client) isRateLimited(ctx context.Context) (bool, error) {
	if tc.redis == nil {
		return false, nil
	}

	_, err := tc.redis.Get(ctx, tc.rateLimitKey()).Result()

	if err == redis.Nil {
		return false, nil
	} else if err == nil {
		return true, nil
	} else {
		return false, err
	}
}

func (tc *Client) markRateLimited(ctx context.Context, remaining float64, duration time.Duration) error {
	if tc.redis == nil || duration <= 0 {
		return nil
	}

	_, err := tc.redis.SetEX(ctx, tc.rateLimitKey(), remaining, duration).Result()
	return err
}

func (tc *Client) url(path string) string {
	return tc.baseURL + path
}

func (tc *Client) UsersByLogin(ctx context.Context, logins []string) ([]*User, error) {
	ur, err := tc.request(ctx, NewUsersResponse,
		WithTags([]string{"url:/helix/users"}),
		WithURL(tc.url("/users")),
		WithQueryValues("login", logins),
	)
	if err != nil {
		return nil, err
	}

	return ur.([]*User), nil
}

func (tc *Client) UserByLogin(ctx context.Context, login string) (*User, error) {
	users, err := tc.UsersByLogin(ctx, []string{login})
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

func (tc *Client) StreamsByLogin(ctx context.Context, logins []string) ([]*Stream, error) {
	sr, err := tc.request(ctx, NewStreamsResponse,
		WithTags([]string{"url:/helix/streams"}),
		WithURL(tc.url("/streams")),
		WithQueryValues("user_login", logins),
	)
	if err != nil {
		return nil, err
	}

	return sr.([]*Stream), nil
}

// LiveStream returns the channel's current broadcast, or nil when offline.
func (tc *Client) LiveStream(ctx context.Context, login string) (*Stream, error) {
	streams, err := tc.StreamsByLogin(ctx, []string{login})
	if err != nil {
		return nil, err
	}

	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0], nil
}

func (tc *Client) Videos(ctx context.Context, userID string, first int, opts ...RequestOption) (*VideoListing, error) {
	opts = append([]RequestOption{
		WithTags([]string{"url:/helix/videos"}),
		WithURL(tc.url("/videos")),
		WithQuery("user_id", userID),
		WithQuery("type", "archive"),
		WithQuery("first", strconv.Itoa(first)),
	}, opts...)

	vl, err := tc.request(ctx, NewVideoListing, opts...)
	if err != nil {
		return nil, err
	}

	return vl.(*VideoListing), nil
}

func (tc *Client) Clips(ctx context.Context, userID string, first int) ([]domain.Clip, error) {
	cr, err := tc.request(ctx, NewClipsResponse,
		WithTags([]string{"url:/helix/clips"}),
		WithURL(tc.url("/clips")),
		WithQuery("broadcaster_id", userID),
		WithQuery("first", strconv.Itoa(first)),
	)
	if err != nil {
		return nil, err
	}

	return cr.([]domain.Clip), nil
}

func (tc *Client) FollowersCount(ctx context.Context, userID string) (int64, error) {
	fr, err := tc.request(ctx, NewFollowersResponse,
		WithTags([]string{"url:/helix/channels/followers"}),
		WithURL(tc.url("/channels/followers")),
		WithQuery("broadcaster_id", userID),
	)
	if err != nil {
		return 0, err
	}

	return fr.(int64), nil
}

// Schedule returns the broadcaster's schedule starting at start. A channel
// without a schedule yields an empty one.
func (tc *Client) Schedule(ctx context.Context, userID string, start time.Time) (*Schedule, error) {
	sr, err := tc.request(ctx, NewScheduleResponse,
		WithTags([]string{"url:/helix/schedule"}),
		WithURL(tc.url("/schedule")),
		WithQuery("broadcaster_id", userID),
		WithQuery("start_time", start.UTC().Format(time.RFC3339)),
		WithQuery("first", "25"),
	)
	if err != nil {
		var se ServerError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return &Schedule{}, nil
		}
		return nil, err
	}

	return sr.(*Schedule), nil
}

func (tc *Client) Games(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	gr, err := tc.request(ctx, NewGamesResponse,
		WithTags([]string{"url:/helix/games"}),
		WithURL(tc.url("/games")),
		WithQueryValues("id", ids),
	)
	if err != nil {
		return nil, err
	}

	return gr.(map[string]string), nil
}
