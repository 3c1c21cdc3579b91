package kick

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

// RoundTripFunc .
type RoundTripFunc func(req *http.Request) *http.Response

// RoundTrip .
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type fixedToken string

func (ft fixedToken) Token(context.Context) (string, error) { return string(ft), nil }
func (ft fixedToken) Configured() bool                      { return ft != "" }

type failingTokens struct{ err error }

func (ft failingTokens) Token(context.Context) (string, error) { return "", ft.err }
func (ft failingTokens) Configured() bool                      { return true }

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestFindLiveFlag(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body  string
		live  bool
		found bool
	}{
		"nested stream flag":     {`{"data":[{"broadcaster_user_id":42,"stream":{"is_live":true,"viewer_count":10}}]}`, true, true},
		"nested stream offline":  {`{"data":[{"broadcaster_user_id":42,"stream":{"is_live":false}}]}`, false, true},
		"stream without flag":    {`{"data":[{"stream":{"viewer_count":3}}]}`, true, true},
		"numeric viewers":        {`{"online":0}`, false, true},
		"ids are not live flags": {`{"data":[{"broadcaster_user_id":42,"slug":"x"}]}`, false, false},
	}

	for scenario, tc := range tests {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			val, err := fastjson.Parse(tc.body)
			require.NoError(t, err)

			live, found := findLiveFlag(val, 0)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.live, live)
		})
	}
}

func TestFindAvatarURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body string
		want string
	}{
		"known key":        {`{"data":[{"profile_picture":"https://files.kick.com/images/user/1/profile_image/a.webp"}]}`, "https://files.kick.com/images/user/1/profile_image/a.webp"},
		"hinted elsewhere": {`{"data":[{"banner":"https://files.kick.com/banner.png","meta":{"img":"https://files.kick.com/avatar.png"}}]}`, "https://files.kick.com/avatar.png"},
		"not a url":        {`{"avatar":"avatar.png"}`, ""},
		"too deep":         {`{"a":{"b":{"c":{"d":{"e":{"avatar":"https://x/avatar.png"}}}}}}`, ""},
	}

	for scenario, tc := range tests {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			val, err := fastjson.Parse(tc.body)
			require.NoError(t, err)

			assert.Equal(t, tc.want, findAvatarURL(val, 0))
		})
	}
}

func TestCreator(t *testing.T) {
	t.Parallel()

	var paths []string
	hc := &http.Client{Transport: RoundTripFunc(func(req *http.Request) *http.Response {
		paths = append(paths, req.URL.Path+"?"+req.URL.RawQuery)
		assert.Equal(t, "Bearer key", req.Header.Get("Authorization"))
		assert.Equal(t, "key", req.Header.Get("x-api-key"))

		switch req.URL.Path {
		case "/public/v1/channels":
			return respond(200, `{"data":[{"broadcaster_user_id":77,"slug":"helin139ban","stream":{"is_live":true}}]}`)
		case "/public/v1/users":
			return respond(200, `{"data":[{"user_id":77,"name":"helin","profile_picture":"https://files.kick.com/profile_image/77.webp"}]}`)
		}
		return respond(404, `{}`)
	})}

	kc := NewClient(fixedToken("key"), &statsd.NoOpClient{}, time.Second, WithClient(hc), WithAPIKey("key"))

	cr, err := kc.Creator(context.Background(), "helin139ban")
	require.NoError(t, err)

	assert.True(t, cr.IsLive)
	assert.Equal(t, "https://files.kick.com/profile_image/77.webp", cr.AvatarURL)
	assert.Equal(t, []string{"/public/v1/channels?slug=helin139ban", "/public/v1/users?id=77"}, paths)
}

func TestCreatorAuth(t *testing.T) {
	t.Parallel()

	authErr := errors.New("kick: token exchange failed with status 401")

	tests := map[string]struct {
		tokens    TokenSource
		wantErr   error
		wantCalls int
		wantAuth  string
	}{
		"anonymous without credentials": {tokens: fixedToken(""), wantCalls: 2},
		"bearer when configured":        {tokens: fixedToken("abc"), wantCalls: 2, wantAuth: "Bearer abc"},
		"token failure surfaces":        {tokens: failingTokens{err: authErr}, wantErr: authErr},
	}

	for scenario, tc := range tests {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			calls := 0
			hc := &http.Client{Transport: RoundTripFunc(func(req *http.Request) *http.Response {
				calls++
				assert.Equal(t, tc.wantAuth, req.Header.Get("Authorization"))
				if req.URL.Path == "/public/v1/channels" {
					return respond(200, `{"data":[{"broadcaster_user_id":77,"slug":"helin139ban"}]}`)
				}
				return respond(200, `{"data":[{"user_id":77,"profile_picture":"https://files.kick.com/77.webp"}]}`)
			})}

			kc := NewClient(tc.tokens, &statsd.NoOpClient{}, time.Second, WithClient(hc))

			_, err := kc.Creator(context.Background(), "helin139ban")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantCalls, calls)
		})
	}
}
