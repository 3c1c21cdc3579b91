package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	hoursExp   = regexp.MustCompile(`(\d+)h`)
	minutesExp = regexp.MustCompile(`(\d+)m`)
	secondsExp = regexp.MustCompile(`(\d+)s`)
)

func durationPart(exp *regexp.Regexp, raw string) (int, bool) {
	matches := exp.FindStringSubmatch(raw)
	if len(matches) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDurationToHours turns a compact platform duration such as "1h2m3s" into
// fractional hours rounded to two decimals. Anything unparseable counts as zero.
func ParseDurationToHours(raw string) float64 {
	h, _ := durationPart(hoursExp, raw)
	m, _ := durationPart(minutesExp, raw)
	s, _ := durationPart(secondsExp, raw)

	return RoundHours(float64(h) + float64(m)/60 + float64(s)/3600)
}

// RoundHours rounds to the two decimals the stream log stores.
func RoundHours(hours float64) float64 {
	return math.Round(hours*100) / 100
}

// FormatHoursLabel renders hours as "2ч 30м", dropping a zero unit.
func FormatHoursLabel(hours float64) string {
	total := int(math.Round(hours * 60))
	if total < 0 {
		total = 0
	}

	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dм", m)
	case m == 0:
		return fmt.Sprintf("%dч", h)
	}
	return fmt.Sprintf("%dч %dм", h, m)
}

// FormatClock renders a compact platform duration as a player clock: 1:02:03, 2:03 or 0:03.
func FormatClock(raw string) string {
	h, hasH := durationPart(hoursExp, raw)
	m, hasM := durationPart(minutesExp, raw)
	s, _ := durationPart(secondsExp, raw)

	switch {
	case hasH:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case hasM:
		return fmt.Sprintf("%d:%02d", m, s)
	}
	return fmt.Sprintf("0:%02d", s)
}

// FormatClipSeconds renders a clip length in seconds as m:ss.
func FormatClipSeconds(seconds float64) string {
	if math.IsNaN(seconds) || seconds <= 0 {
		return "0:00"
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
