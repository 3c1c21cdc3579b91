package twitch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const userAgent = "streamlog/1.0 (+https://sasagram.ru)"

type Request struct {
	query  url.Values
	method string
	token  string
	client string
	url    string
	tags   []string
}

type RequestOption func(*Request)

func NewRequest(opts ...RequestOption) *Request {
	req := &Request{url.Values{}, "GET", "", "", "", nil}
	for _, opt := range opts {
		opt(req)
	}

	return req
}

func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = r.query.Encode()

	req.Header.Add("User-Agent", userAgent)
	req.Header.Add("Accept", "application/json")

	if r.client != "" {
		req.Header.Add("Client-ID", r.client)
	}

	if r.token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", r.token))
	}

	return req, nil
}

func WithTags(tags []string) RequestOption {
	return func(req *Request) {
		req.tags = tags
	}
}

func WithMethod(method string) RequestOption {
	return func(req *Request) {
		req.method = method
	}
}

func WithURL(url string) RequestOption {
	return func(req *Request) {
		req.url = url
	}
}

func WithToken(token string) RequestOption {
	return func(req *Request) {
		req.token = token
	}
}

func WithClientID(id string) RequestOption {
	return func(req *Request) {
		req.client = id
	}
}

func WithQuery(key, val string) RequestOption {
	return func(req *Request) {
		req.query.Set(key, val)
	}
}

// WithQueryValues repeats key once per value, the way Helix takes batched lookups.
func WithQueryValues(key string, vals []string) RequestOption {
	return func(req *Request) {
		for _, val := range vals {
			req.query.Add(key, val)
		}
	}
}

func WithCursor(cursor string) RequestOption {
	return func(req *Request) {
		if cursor != "" {
			req.query.Set("after", cursor)
		}
	}
}
