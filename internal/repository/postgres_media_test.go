package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/testhelper"
)

func TestPostgresMedia_ReplaceSnapshot(t *testing.T) {
	ctx := context.Background()
	tx := testhelper.NewTestTx(t)
	media := repository.NewPostgresMedia(tx)
	state := repository.NewPostgresCacheState(tx)

	created := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	syncedAt := time.Now().UTC()

	vods := []domain.Vod{{ID: "test-vod-1", Title: "VOD", URL: "https://www.twitch.tv/videos/1", ViewCount: 42, Duration: "1h2m3s", CreatedAt: created}}
	clips := []domain.Clip{{ID: "test-clip-1", Title: "Clip", URL: "https://clips.twitch.tv/1", ViewCount: 7, DurationSeconds: 29.5, CreatorName: "viewer", CreatedAt: created}}

	require.NoError(t, media.ReplaceSnapshot(ctx, vods, clips, syncedAt))

	gotVods, err := media.ListVods(ctx, 1)
	require.NoError(t, err)
	require.Len(t, gotVods, 1)
	assert.Equal(t, "test-vod-1", gotVods[0].ID)
	assert.Equal(t, int64(42), gotVods[0].ViewCount)

	gotClips, err := media.ListClips(ctx, 1)
	require.NoError(t, err)
	require.Len(t, gotClips, 1)
	assert.Equal(t, 29.5, gotClips[0].DurationSeconds)

	cs, err := state.Get(ctx, domain.MediaCacheKey)
	require.NoError(t, err)
	parsed, err := time.Parse(time.RFC3339Nano, cs.ValueText)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(syncedAt))

	vods[0].ViewCount = 100
	require.NoError(t, media.ReplaceSnapshot(ctx, vods, clips, syncedAt))

	gotVods, err = media.ListVods(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), gotVods[0].ViewCount)
}

func TestPostgresCacheState_Get(t *testing.T) {
	ctx := context.Background()
	state := repository.NewPostgresCacheState(testhelper.NewTestTx(t))

	require.NoError(t, state.Set(ctx, "test:key", "one"))
	require.NoError(t, state.Set(ctx, "test:key", "two"))

	testCases := map[string]struct {
		key  string
		want string
		err  error
	}{
		"last write wins": {"test:key", "two", nil},
		"missing key":     {"test:missing", "", domain.ErrNotFound},
	}

	for scenario, tc := range testCases { //nolint:paralleltest
		t.Run(scenario, func(t *testing.T) {
			cs, err := state.Get(ctx, tc.key)
			if tc.err != nil {
				require.Error(t, err)
				assert.Equal(t, tc.err, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, cs.ValueText)
		})
	}
}
