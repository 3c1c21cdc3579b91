package timeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasagram/streamlog/internal/timeline"
)

func intPtr(i int) *int { return &i }

func TestViewWindow(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cards []timeline.Card
		end   int
	}{
		"no cards":             {nil, 26 * 60},
		"inside default":       {[]timeline.Card{{StartMinutes: intPtr(1200), EndMinutes: intPtr(1350)}}, 26 * 60},
		"past default":         {[]timeline.Card{{StartMinutes: intPtr(1200), EndMinutes: intPtr(1600)}}, 28 * 60},
		"open end adds 2h":     {[]timeline.Card{{StartMinutes: intPtr(1500)}}, 28 * 60},
		"capped at 36:00":      {[]timeline.Card{{StartMinutes: intPtr(1200), EndMinutes: intPtr(2300)}}, 36 * 60},
		"placeholders ignored": {[]timeline.Card{{}}, 26 * 60},
	}

	for scenario, tc := range tests {
		tc := tc
		t.Run(scenario, func(t *testing.T) {
			t.Parallel()

			w := timeline.ViewWindow(tc.cards)
			assert.Equal(t, 17*60, w.Start)
			assert.Equal(t, tc.end, w.End)
		})
	}
}

func TestBlockStyle(t *testing.T) {
	t.Parallel()

	w := timeline.Window{Start: 1020, End: 1560}

	_, ok := timeline.BlockStyle(timeline.Card{}, w)
	assert.False(t, ok)

	b, ok := timeline.BlockStyle(timeline.Card{StartMinutes: intPtr(1200), EndMinutes: intPtr(1350)}, w)
	require.True(t, ok)
	assert.InDelta(t, 33.333, b.Left, 0.01)
	assert.InDelta(t, 27.777, b.Width, 0.01)

	b, _ = timeline.BlockStyle(timeline.Card{StartMinutes: intPtr(1200)}, w)
	assert.InDelta(t, 45.0/540*100, b.Width, 0.01)

	b, _ = timeline.BlockStyle(timeline.Card{StartMinutes: intPtr(1200), EndMinutes: intPtr(1201)}, w)
	assert.InDelta(t, 5.0, b.Width, 0.01)

	b, _ = timeline.BlockStyle(timeline.Card{StartMinutes: intPtr(600), EndMinutes: intPtr(700)}, w)
	assert.Equal(t, 0.0, b.Left)
	assert.InDelta(t, 5.0, b.Width, 0.01)
}

func TestAxisTicks(t *testing.T) {
	t.Parallel()

	ticks := timeline.AxisTicks(timeline.Window{Start: 1020, End: 1560})
	assert.Len(t, ticks, 10)
	assert.Equal(t, "17:00", ticks[0])
	assert.Equal(t, "00:00", ticks[7])
	assert.Equal(t, "02:00", ticks[9])
}

func TestLayoutWeek(t *testing.T) {
	t.Parallel()

	week := timeline.Week{Cards: []timeline.Card{
		{StartMinutes: intPtr(1200), EndMinutes: intPtr(1350)},
		{},
	}}

	l := timeline.LayoutWeek(week)
	assert.Equal(t, timeline.Window{Start: 17 * 60, End: 26 * 60}, l.Window)
	assert.Len(t, l.Ticks, 10)
	require.Len(t, l.Blocks, 2)
	require.NotNil(t, l.Blocks[0])
	assert.Nil(t, l.Blocks[1])
}
