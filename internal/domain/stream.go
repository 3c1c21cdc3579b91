package domain

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxDurationHours is the largest value the streams.duration_hours column can hold.
const MaxDurationHours = 999.99

// StreamRecord is one historical broadcast in the stream log.
type StreamRecord struct {
	ID            int64     `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	DurationHours float64   `json:"duration_hours"`
	Title         *string   `json:"title"`
	StreamURL     *string   `json:"stream_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// EndedAt returns the computed end of the broadcast, or false when the duration is unknown.
func (sr *StreamRecord) EndedAt() (time.Time, bool) {
	if sr.DurationHours <= 0 {
		return time.Time{}, false
	}
	return sr.StartedAt.Add(time.Duration(sr.DurationHours * float64(time.Hour))), true
}

// StreamInput is an upsert request for the stream log.
type StreamInput struct {
	StartedAt     time.Time
	DurationHours float64
	Title         *string
	StreamURL     *string
}

func finite(value interface{}) error {
	f, _ := value.(float64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be a finite number")
	}
	return nil
}

func (si *StreamInput) Validate() error {
	err := validation.ValidateStruct(si,
		validation.Field(&si.StartedAt, validation.Required),
		validation.Field(&si.DurationHours, validation.By(finite), validation.Min(0.0), validation.Max(MaxDurationHours)),
	)
	if err != nil {
		return &ValidationError{err}
	}
	return nil
}

// Normalized returns a copy with a UTC start, trimmed text and blank text turned into nil.
func (si StreamInput) Normalized() StreamInput {
	si.StartedAt = si.StartedAt.UTC()
	si.Title = trimmedOrNil(si.Title)
	si.StreamURL = trimmedOrNil(si.StreamURL)
	return si
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// StreamRepository represents the stream log contract
type StreamRepository interface {
	List(ctx context.Context) ([]StreamRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]StreamRecord, error)

	Upsert(ctx context.Context, in StreamInput) (StreamRecord, error)
	UpsertMany(ctx context.Context, ins []StreamInput) ([]StreamRecord, error)
}
