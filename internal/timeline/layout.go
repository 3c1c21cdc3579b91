package timeline

import (
	"fmt"
	"math"
)

const (
	ViewStartMinutes   = 17 * 60
	BaseViewEndMinutes = 26 * 60
	MaxViewEndMinutes  = 36 * 60
	SlotMinutes        = 60

	missingEndMinutes = 45
	minBlockMinutes   = 20
	minWidthPercent   = 5.0
	openEndMinutes    = 120
	endBufferMinutes  = 30
)

type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Block struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

func (b Block) CSS() (string, string) {
	return fmt.Sprintf("%g%%", b.Left), fmt.Sprintf("%g%%", b.Width)
}

// ViewWindow widens the daily axis past 02:00 when a card runs later, in
// whole hours with a half-hour buffer, never beyond 12:00 the next day.
func ViewWindow(cards []Card) Window {
	latest := 0
	for _, c := range cards {
		var end int
		switch {
		case c.EndMinutes != nil:
			end = *c.EndMinutes
		case c.StartMinutes != nil:
			end = *c.StartMinutes + openEndMinutes
		default:
			continue
		}
		if end > latest {
			latest = end
		}
	}

	end := BaseViewEndMinutes
	if latest > 0 {
		rounded := int(math.Ceil(float64(latest+endBufferMinutes)/SlotMinutes)) * SlotMinutes
		if rounded > end {
			end = rounded
		}
	}
	if end > MaxViewEndMinutes {
		end = MaxViewEndMinutes
	}

	return Window{Start: ViewStartMinutes, End: end}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BlockStyle positions a card on the axis as percentages. Cards without a
// start have no block.
func BlockStyle(c Card, w Window) (Block, bool) {
	if c.StartMinutes == nil {
		return Block{}, false
	}

	total := float64(w.End - w.Start)
	start := clamp(*c.StartMinutes, w.Start, w.End)

	rawEnd := start + missingEndMinutes
	if rawEnd > w.End {
		rawEnd = w.End
	}
	if c.EndMinutes != nil {
		rawEnd = *c.EndMinutes
	}

	end := clamp(rawEnd, w.Start, w.End)
	if end < start+minBlockMinutes {
		end = start + minBlockMinutes
	}

	width := float64(end-start) / total * 100
	if width < minWidthPercent {
		width = minWidthPercent
	}

	return Block{Left: float64(start-w.Start) / total * 100, Width: width}, true
}

// AxisTicks labels every hour of the window, both ends included.
func AxisTicks(w Window) []string {
	var ticks []string
	for m := w.Start; m <= w.End; m += SlotMinutes {
		ticks = append(ticks, FormatAxis(m))
	}
	return ticks
}

// Layout is everything needed to draw one week on the shared axis. Blocks
// line up with the week's cards; a nil entry means nothing to draw.
type Layout struct {
	Window Window   `json:"window"`
	Ticks  []string `json:"ticks"`
	Blocks []*Block `json:"blocks"`
}

func LayoutWeek(w Week) Layout {
	window := ViewWindow(w.Cards)

	blocks := make([]*Block, len(w.Cards))
	for i, c := range w.Cards {
		if b, ok := BlockStyle(c, window); ok {
			blocks[i] = &b
		}
	}

	return Layout{Window: window, Ticks: AxisTicks(window), Blocks: blocks}
}
