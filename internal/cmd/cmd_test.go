package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/fetchcache"
	"github.com/sasagram/streamlog/internal/timeline"
	"github.com/sasagram/streamlog/internal/twitch"
)

type fakeVideoPages struct {
	pages   []*twitch.VideoListing
	err     error
	calls   int
	cursors []string
}

func (f *fakeVideoPages) Videos(ctx context.Context, userID string, first int, opts ...twitch.RequestOption) (*twitch.VideoListing, error) {
	if f.err != nil {
		return nil, f.err
	}

	req := twitch.NewRequest(opts...)
	hr, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	f.cursors = append(f.cursors, hr.URL.Query().Get("after"))

	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 20, 0, 0, 0, time.UTC)
}

func TestCollectVods(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pages     []*twitch.VideoListing
		wantIDs   []string
		wantCalls int
	}{
		"stops at cutoff": {
			pages: []*twitch.VideoListing{
				{Vods: []domain.Vod{{ID: "5", CreatedAt: day(20)}, {ID: "4", CreatedAt: day(15)}}, Cursor: "c1"},
				{Vods: []domain.Vod{{ID: "3", CreatedAt: day(12)}, {ID: "2", CreatedAt: day(5)}}, Cursor: "c2"},
				{Vods: []domain.Vod{{ID: "1", CreatedAt: day(1)}}},
			},
			wantIDs:   []string{"5", "4", "3"},
			wantCalls: 2,
		},
		"stops without cursor": {
			pages: []*twitch.VideoListing{
				{Vods: []domain.Vod{{ID: "5", CreatedAt: day(20)}}},
			},
			wantIDs:   []string{"5"},
			wantCalls: 1,
		},
		"empty archive": {
			pages:     []*twitch.VideoListing{{Cursor: "c1"}},
			wantCalls: 1,
		},
	}

	for scenario, tc := range tests {
		tc := tc

		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			f := &fakeVideoPages{pages: tc.pages}
			vods, err := collectVods(context.Background(), f, "42", day(10))
			require.NoError(t, err)

			var ids []string
			for _, v := range vods {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
			assert.Equal(t, tc.wantCalls, f.calls)
			assert.Equal(t, "", f.cursors[0])
		})
	}
}

func TestCollectVods_PassesCursor(t *testing.T) {
	t.Parallel()

	f := &fakeVideoPages{pages: []*twitch.VideoListing{
		{Vods: []domain.Vod{{ID: "2", CreatedAt: day(20)}}, Cursor: "abc"},
		{Vods: []domain.Vod{{ID: "1", CreatedAt: day(19)}}},
	}}

	_, err := collectVods(context.Background(), f, "42", day(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "abc"}, f.cursors)
}

func TestCollectVods_Error(t *testing.T) {
	t.Parallel()

	f := &fakeVideoPages{err: twitch.ErrRateLimited}
	_, err := collectVods(context.Background(), f, "42", day(1))
	assert.True(t, errors.Is(err, twitch.ErrRateLimited))
}

func TestVodInputs(t *testing.T) {
	t.Parallel()

	ins := vodInputs([]domain.Vod{{Title: "t", URL: "u", Duration: "1h2m3s", CreatedAt: day(3)}})
	require.Len(t, ins, 1)
	assert.Equal(t, day(3), ins[0].StartedAt)
	assert.Equal(t, 1.03, ins[0].DurationHours)
	assert.Equal(t, "t", *ins[0].Title)
	assert.Equal(t, "u", *ins[0].StreamURL)
}

func TestLoadTimeline(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/live-aggregate":
			_, _ = w.Write([]byte(`{
				"isLive": true,
				"user": {"login": "sasavot"},
				"stream": {"title": "On air", "started_at": "2025-03-12T18:00:00Z"},
				"mediaStatus": {"status": "ok", "lastSyncedAt": "2025-03-12T19:55:00Z"}
			}`))
		case "/streams":
			_, _ = w.Write([]byte(`{"streams": [
				{"id": 1, "started_at": "2025-03-10T20:00:00Z", "duration_hours": 2.5, "title": "Monday", "stream_url": null}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	now := time.Date(2025, 3, 12, 20, 0, 0, 0, time.UTC)
	cache := fetchcache.New(fetchcache.WithClock(func() time.Time { return now }))

	view, err := loadTimeline(context.Background(), cache, srv.URL+"/", time.UTC, 2, now)
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10", view.Week.Key)
	assert.True(t, view.IsLive)
	assert.Equal(t, "20:00 - 22:30", view.Week.Cards[0].TimeRange)

	today := view.Week.Cards[2]
	assert.True(t, today.IsLive)
	require.NotNil(t, today.StreamURL)
	assert.Equal(t, "https://twitch.tv/sasavot", *today.StreamURL)
	assert.Equal(t, "ok", view.MediaStatus)

	_, err = loadTimeline(context.Background(), cache, srv.URL, time.UTC, 2, now)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	var out bytes.Buffer
	renderTimeline(&out, view)
	assert.Contains(t, out.String(), "20:00 - 22:30")
	assert.Contains(t, out.String(), "Monday")
	assert.Contains(t, out.String(), "media ok, synced")
}

func TestLoadTimeline_Error(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := loadTimeline(context.Background(), fetchcache.New(), srv.URL, time.UTC, 1, time.Now())
	assert.Error(t, err)
}

func TestBar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, barWidth, len(bar(nil)))
	assert.Equal(t, barWidth, len(bar(&timeline.Block{Left: 0, Width: 100})))
	assert.Equal(t, barWidth, len(bar(&timeline.Block{Left: 98, Width: 5})))
	assert.Contains(t, bar(&timeline.Block{Left: 50, Width: 1}), "#")
}

func TestSelectQueues(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in      []string
		want    []string
		wantErr bool
	}{
		"defaults to all": {want: []string{"media", "streams"}},
		"single":          {in: []string{"streams"}, want: []string{"streams"}},
		"dedupes":         {in: []string{"streams", "media", "streams"}, want: []string{"media", "streams"}},
		"unknown":         {in: []string{"media", "trending"}, wantErr: true},
	}

	for scenario, tc := range tests {
		tc := tc

		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			got, err := selectQueues(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
