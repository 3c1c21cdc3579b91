// Package timeline turns the stream log and the current live session into a
// grid of calendar weeks, one card per day.
package timeline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sasagram/streamlog/internal/domain"
)

const DefaultWeeks = 12

// LiveSession describes the broadcast that is on air right now.
type LiveSession struct {
	StartedAt time.Time
	Title     string
	URL       string
}

type Input struct {
	Records  []domain.StreamRecord
	Live     *LiveSession
	Now      time.Time
	Location *time.Location
	Weeks    int
}

type Card struct {
	Key           string  `json:"key"`
	DayLabel      string  `json:"day_label"`
	DateLabel     string  `json:"date_label"`
	TimeRange     string  `json:"time_range"`
	DurationLabel string  `json:"duration_label"`
	Title         string  `json:"title"`
	StreamURL     *string `json:"stream_url"`
	IsToday       bool    `json:"is_today"`
	IsActive      bool    `json:"is_active"`
	IsLive        bool    `json:"is_live"`
	StartMinutes  *int    `json:"start_minutes"`
	EndMinutes    *int    `json:"end_minutes"`
}

type Week struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Cards []Card `json:"cards"`
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := midnight(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func minutesSince(day, t time.Time) *int {
	m := int(math.Round(t.Sub(day).Minutes()))
	return &m
}

// Build is pure: the same input always yields the same weeks, oldest first,
// with the last week containing Now.
func Build(in Input) []Week {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	weeks := in.Weeks
	if weeks <= 0 {
		weeks = DefaultWeeks
	}

	now := in.Now.In(loc)
	today := midnight(now)
	todayKey := dateKey(today)

	byDate := make(map[string]domain.StreamRecord)
	for _, sr := range in.Records {
		if sr.StartedAt.IsZero() || sr.StartedAt.After(now) {
			continue
		}

		key := dateKey(sr.StartedAt.In(loc))
		if existing, ok := byDate[key]; !ok || existing.StartedAt.Before(sr.StartedAt) {
			byDate[key] = sr
		}
	}

	var liveKey string
	if in.Live != nil {
		liveKey = dateKey(in.Live.StartedAt.In(loc))
	}

	currentWeek := startOfWeek(today)
	out := make([]Week, 0, weeks)

	for offset := weeks - 1; offset >= 0; offset-- {
		weekStart := currentWeek.AddDate(0, 0, -7*offset)
		cards := make([]Card, 0, 7)

		for d := 0; d < 7; d++ {
			day := weekStart.AddDate(0, 0, d)
			key := dateKey(day)

			card := Card{
				Key:           key,
				DayLabel:      dayLabel(day),
				DateLabel:     dateLabel(day),
				TimeRange:     placeholderRange,
				DurationLabel: placeholderText,
				Title:         placeholderText,
				IsToday:       key == todayKey,
			}

			sr, hasRecord := byDate[key]
			if day.After(today) {
				hasRecord = false
			}

			switch {
			case in.Live != nil && key == liveKey:
				fillLive(&card, day, now, in.Live, loc)
			case hasRecord:
				fillRecord(&card, day, sr, loc)
			}

			cards = append(cards, card)
		}

		out = append(out, Week{Key: dateKey(weekStart), Label: weekLabel(weekStart), Cards: cards})
	}

	return out
}

func fillLive(card *Card, day, now time.Time, live *LiveSession, loc *time.Location) {
	started := live.StartedAt.In(loc)

	card.TimeRange = clock(started)
	card.DurationLabel = liveLabel
	card.Title = strings.TrimSpace(live.Title)
	if card.Title == "" {
		card.Title = liveTitle
	}
	if live.URL != "" {
		u := live.URL
		card.StreamURL = &u
	}

	card.StartMinutes = minutesSince(day, started)
	end := *minutesSince(day, now)
	if end < *card.StartMinutes {
		end = *card.StartMinutes
	}
	card.EndMinutes = &end

	card.IsLive = true
	card.IsActive = true
}

func fillRecord(card *Card, day time.Time, sr domain.StreamRecord, loc *time.Location) {
	started := sr.StartedAt.In(loc)

	if end, ok := sr.EndedAt(); ok {
		end = end.In(loc)
		card.TimeRange = clock(started) + " - " + clock(end)
		card.DurationLabel = "Шел " + domain.FormatHoursLabel(sr.DurationHours)
		card.EndMinutes = minutesSince(day, end)
	} else {
		card.TimeRange = clock(started)
		card.DurationLabel = unknownDuration
	}

	card.Title = untitled
	if sr.Title != nil && strings.TrimSpace(*sr.Title) != "" {
		card.Title = strings.TrimSpace(*sr.Title)
	}
	if sr.StreamURL != nil && strings.TrimSpace(*sr.StreamURL) != "" {
		u := strings.TrimSpace(*sr.StreamURL)
		card.StreamURL = &u
	}

	card.StartMinutes = minutesSince(day, started)
	card.IsActive = true
}

// CurrentWeek returns the week containing now, which Build always puts last.
func CurrentWeek(weeks []Week) (Week, bool) {
	if len(weeks) == 0 {
		return Week{}, false
	}
	return weeks[len(weeks)-1], true
}

// FindWeek returns the week starting on key (YYYY-MM-DD).
func FindWeek(weeks []Week, key string) (Week, bool) {
	i := sort.Search(len(weeks), func(i int) bool { return weeks[i].Key >= key })
	if i < len(weeks) && weeks[i].Key == key {
		return weeks[i], true
	}
	return Week{}, false
}
