package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// MediaCacheKey marks the last successful VOD/clip sync in app_cache_state.
	MediaCacheKey = "media:last_synced_at"

	MediaCacheTTL   = 10 * time.Minute
	MediaListLimit  = 20
	MediaSyncPeriod = 5 * time.Minute
)

// Vod is a cached past broadcast from the upstream platform.
type Vod struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	ViewCount    int64     `json:"view_count"`
	Duration     string    `json:"duration"`
	CreatedAt    time.Time `json:"created_at"`
	Description  string    `json:"description"`
	UpdatedAt    time.Time `json:"-"`
}

// Clip is a cached clip from the upstream platform.
type Clip struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	ViewCount       int64     `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
	DurationSeconds float64   `json:"duration"`
	CreatorName     string    `json:"creator_name"`
	UpdatedAt       time.Time `json:"-"`
}

// ThumbnailAt fills the size placeholders Twitch leaves in VOD thumbnail URLs.
func (v *Vod) ThumbnailAt(width, height int) string {
	r := strings.NewReplacer("%{width}", strconv.Itoa(width), "%{height}", strconv.Itoa(height))
	return r.Replace(v.ThumbnailURL)
}

// FormatViewCount renders counts the way the site shows them: 950, 1.2K, 3.4M.
func FormatViewCount(count int64) string {
	switch {
	case count >= 1_000_000:
		return humanize.FormatFloat("#,###.#", float64(count)/1_000_000) + "M"
	case count >= 1_000:
		return humanize.FormatFloat("#,###.#", float64(count)/1_000) + "K"
	}
	return strconv.FormatInt(count, 10)
}

// CacheState is a generic key/value marker row.
type CacheState struct {
	Key       string
	ValueText string
	UpdatedAt time.Time
}

type MediaRepository interface {
	ListVods(ctx context.Context, limit int) ([]Vod, error)
	ListClips(ctx context.Context, limit int) ([]Clip, error)

	// ReplaceSnapshot upserts every VOD and clip and then stamps the freshness
	// marker, all in one transaction.
	ReplaceSnapshot(ctx context.Context, vods []Vod, clips []Clip, syncedAt time.Time) error
}

type CacheStateRepository interface {
	Get(ctx context.Context, key string) (CacheState, error)
	Set(ctx context.Context, key, value string) error
}
