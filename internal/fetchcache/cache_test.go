package fetchcache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/internal/fetchcache"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestFetchSingleFlight(t *testing.T) {
	t.Parallel()

	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(`{"isLive":true}`))
	}))
	defer srv.Close()

	c := fetchcache.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := fetchcache.FetchJSON[struct {
				IsLive bool `json:"isLive"`
			}](ctx, c, "live", srv.URL, time.Minute)
			assert.NoError(t, err)
			results[i] = out.IsLive
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, []bool{true, true}, results)
}

func TestFetchTTLAndForceRefresh(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"streams":[]}`))
	}))
	defer srv.Close()

	clk := &clock{now: time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)}
	c := fetchcache.New(fetchcache.WithClock(clk.Now))
	ctx := context.Background()

	_, err := c.Fetch(ctx, "streams", srv.URL, time.Minute)
	require.NoError(t, err)
	_, err = c.Fetch(ctx, "streams", srv.URL, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = c.Fetch(ctx, "streams", srv.URL, time.Minute, fetchcache.WithForceRefresh())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	clk.Advance(61 * time.Second)
	_, err = c.Fetch(ctx, "streams", srv.URL, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := fetchcache.New()
	ctx := context.Background()

	_, err := c.Fetch(ctx, "agg", srv.URL, time.Minute)
	var se *fetchcache.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)

	body, err := c.Fetch(ctx, "agg", srv.URL, time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchCallerCancelDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-release
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := fetchcache.New()

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(first, "k", srv.URL, time.Minute)
		firstErr <- err
	}()

	<-started

	second := make(chan error, 1)
	var body []byte
	go func() {
		b, err := c.Fetch(context.Background(), "k", srv.URL, time.Minute)
		body = b
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}
