package timeline

import (
	"fmt"
	"time"
)

const (
	placeholderRange = "--:-- - --:--"
	placeholderText  = "—"

	liveLabel       = "В эфире"
	liveTitle       = "Прямой эфир"
	unknownDuration = "Длительность неизвестна"
	untitled        = "Без названия"
)

var weekdays = [...]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"}

var months = [...]string{"янв.", "февр.", "мар.", "апр.", "мая", "июн.", "июл.", "авг.", "сент.", "окт.", "нояб.", "дек."}

func dayLabel(t time.Time) string {
	return weekdays[t.Weekday()]
}

func dateLabel(t time.Time) string {
	return t.Format("02.01")
}

func shortDate(t time.Time) string {
	return fmt.Sprintf("%02d %s", t.Day(), months[t.Month()-1])
}

func weekLabel(start time.Time) string {
	return shortDate(start) + " - " + shortDate(start.AddDate(0, 0, 6))
}

func clock(t time.Time) string {
	return t.Format("15:04")
}

// FormatAxis renders minutes from midnight as a wall clock, wrapping past 24:00.
func FormatAxis(minutes int) string {
	const day = 24 * 60
	normalized := ((minutes % day) + day) % day
	return fmt.Sprintf("%02d:%02d", normalized/60, normalized%60)
}
