package api

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/mediasync"
	"github.com/sasagram/streamlog/internal/twitch"
)

type mediaStatus struct {
	Status       mediasync.Status `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	LastSyncedAt *time.Time       `json:"lastSyncedAt"`
	IsFresh      bool             `json:"isFresh"`
}

const (
	vodThumbnailWidth  = 960
	vodThumbnailHeight = 540
)

// vodEntry is a cached VOD plus the labels the site renders on its card.
type vodEntry struct {
	domain.Vod
	ThumbnailSized string `json:"thumbnail_url_sized"`
	DurationLabel  string `json:"duration_label"`
	ViewCountLabel string `json:"view_count_label"`
}

type clipEntry struct {
	domain.Clip
	DurationLabel  string `json:"duration_label"`
	ViewCountLabel string `json:"view_count_label"`
}

func vodEntries(vods []domain.Vod) []vodEntry {
	out := make([]vodEntry, 0, len(vods))
	for _, v := range vods {
		v := v
		out = append(out, vodEntry{
			Vod:            v,
			ThumbnailSized: v.ThumbnailAt(vodThumbnailWidth, vodThumbnailHeight),
			DurationLabel:  domain.FormatClock(v.Duration),
			ViewCountLabel: domain.FormatViewCount(v.ViewCount),
		})
	}
	return out
}

func clipEntries(clips []domain.Clip) []clipEntry {
	out := make([]clipEntry, 0, len(clips))
	for _, c := range clips {
		out = append(out, clipEntry{
			Clip:           c,
			DurationLabel:  domain.FormatClipSeconds(c.DurationSeconds),
			ViewCountLabel: domain.FormatViewCount(c.ViewCount),
		})
	}
	return out
}

type liveAggregateResponse struct {
	User           *twitch.User   `json:"user"`
	IsLive         bool           `json:"isLive"`
	Stream         *twitch.Stream `json:"stream"`
	Vods           []vodEntry     `json:"vods"`
	Clips          []clipEntry    `json:"clips"`
	FollowersCount int64          `json:"followersCount"`
	MediaStatus    mediaStatus    `json:"mediaStatus"`
}

func (a *api) liveAggregateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := a.twitch.UserByLogin(ctx, a.username)
	if err != nil {
		a.upstreamError(w, r, "failed to fetch channel", err)
		return
	}

	var (
		stream    *twitch.Stream
		followers int64
		result    mediasync.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stream, err = a.twitch.LiveStream(gctx, a.username)
		return err
	})
	g.Go(func() error {
		count, err := a.twitch.FollowersCount(gctx, user.ID)
		if err != nil {
			a.logger.Warn("failed to fetch followers count", zap.Error(err))
			return nil
		}
		followers = count
		return nil
	})
	g.Go(func() error {
		result = a.media.Load(gctx, user.ID)
		return nil
	})

	if err := g.Wait(); err != nil {
		a.upstreamError(w, r, "failed to fetch live status", err)
		return
	}

	res := liveAggregateResponse{
		User:           user,
		IsLive:         stream != nil,
		Stream:         stream,
		Vods:           vodEntries(result.Snapshot.Vods),
		Clips:          clipEntries(result.Snapshot.Clips),
		FollowersCount: followers,
		MediaStatus: mediaStatus{
			Status:       result.Status,
			Reason:       result.Reason,
			LastSyncedAt: result.Snapshot.LastSyncedAt,
			IsFresh:      result.Snapshot.IsFresh,
		},
	}
	w.Header().Set("Cache-Control", "s-maxage=60, stale-while-revalidate=30")
	a.jsonResponse(w, http.StatusOK, res)
}

// upstreamError maps a failed platform call to a response. Missing
// credentials and unknown channels are not the platform's fault.
func (a *api) upstreamError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case errors.Is(err, twitch.ErrUserNotFound):
		a.errorResponse(w, r, http.StatusNotFound, "channel not found")
	case errors.Is(err, domain.ErrConfiguration):
		a.logger.Error(message, zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, message)
	default:
		a.logger.Error(message, zap.Error(err))
		a.errorResponse(w, r, http.StatusBadGateway, message)
	}
}
