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

func NewTestPostgresStream(t *testing.T) domain.StreamRepository {
	t.Helper()

	return repository.NewPostgresStream(testhelper.NewTestTx(t))
}

func strPtr(s string) *string { return &s }

// Far enough in the past to never collide with real rows.
var testStart = time.Date(2001, 3, 10, 20, 0, 0, 0, time.UTC)

func TestPostgresStream_UpsertMonotonicDuration(t *testing.T) {
	ctx := context.Background()
	repo := NewTestPostgresStream(t)

	steps := []struct {
		have float64
		want float64
	}{
		{0.5, 0.5},
		{1.25, 1.25},
		{0.75, 1.25},
		{2.5, 2.5},
		{0, 2.5},
	}

	for _, step := range steps {
		sr, err := repo.Upsert(ctx, domain.StreamInput{StartedAt: testStart, DurationHours: step.have})
		require.NoError(t, err)
		assert.Equal(t, step.want, sr.DurationHours)
	}
}

func TestPostgresStream_UpsertPreservesFields(t *testing.T) {
	ctx := context.Background()
	repo := NewTestPostgresStream(t)

	first, err := repo.Upsert(ctx, domain.StreamInput{
		StartedAt:     testStart,
		DurationHours: 1,
		Title:         strPtr("  Вечерний стрим "),
		StreamURL:     strPtr("https://www.twitch.tv/videos/1"),
	})
	require.NoError(t, err)
	require.NotNil(t, first.Title)
	assert.Equal(t, "Вечерний стрим", *first.Title)

	testCases := map[string]struct {
		in        domain.StreamInput
		wantTitle string
		wantURL   string
	}{
		"nil keeps stored":   {domain.StreamInput{StartedAt: testStart, DurationHours: 1}, "Вечерний стрим", "https://www.twitch.tv/videos/1"},
		"blank keeps stored": {domain.StreamInput{StartedAt: testStart, Title: strPtr("   ")}, "Вечерний стрим", "https://www.twitch.tv/videos/1"},
		"new title replaces": {domain.StreamInput{StartedAt: testStart, Title: strPtr("Новый")}, "Новый", "https://www.twitch.tv/videos/1"},
	}

	for scenario, tc := range testCases { //nolint:paralleltest
		t.Run(scenario, func(t *testing.T) {
			sr, err := repo.Upsert(ctx, tc.in)
			require.NoError(t, err)

			require.NotNil(t, sr.Title)
			require.NotNil(t, sr.StreamURL)
			assert.Equal(t, tc.wantTitle, *sr.Title)
			assert.Equal(t, tc.wantURL, *sr.StreamURL)
			assert.Equal(t, first.ID, sr.ID)
		})
	}
}

func TestPostgresStream_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	repo := NewTestPostgresStream(t)

	_, err := repo.Upsert(ctx, domain.StreamInput{StartedAt: testStart, DurationHours: -1})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	srs, err := repo.ListSince(ctx, testStart)
	require.NoError(t, err)
	for _, sr := range srs {
		assert.NotEqual(t, testStart, sr.StartedAt.UTC())
	}
}

func TestPostgresStream_UpsertManyAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewTestPostgresStream(t)

	batch := make([]domain.StreamInput, 6)
	for i := range batch {
		batch[i] = domain.StreamInput{StartedAt: testStart.AddDate(0, 0, i), DurationHours: 1}
	}
	batch[3].DurationHours = -2

	_, err := repo.UpsertMany(ctx, batch)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))

	srs, err := repo.ListSince(ctx, testStart)
	require.NoError(t, err)
	for _, sr := range srs {
		assert.True(t, sr.StartedAt.Before(testStart) || sr.StartedAt.After(testStart.AddDate(0, 0, 6)))
	}
}

func TestPostgresStream_UpsertManyAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewTestPostgresStream(t)

	batch := []domain.StreamInput{
		{StartedAt: testStart, DurationHours: 2.5, Title: strPtr("Первый")},
		{StartedAt: testStart.AddDate(0, 0, 1), DurationHours: 3},
	}

	srs, err := repo.UpsertMany(ctx, batch)
	require.NoError(t, err)
	assert.Len(t, srs, 2)

	listed, err := repo.List(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(listed), 2)

	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].StartedAt.After(listed[i-1].StartedAt))
	}
}
