package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/timeline"
)

const maxTimelineWeeks = 52

type timelineWeek struct {
	timeline.Week
	Layout timeline.Layout `json:"layout"`
}

type storeStatus string

const (
	storeOK          storeStatus = "ok"
	storeUnavailable storeStatus = "unavailable"
)

type timelineResponse struct {
	Weeks       []timelineWeek `json:"weeks"`
	CurrentWeek string         `json:"currentWeek"`
	IsLive      bool           `json:"isLive"`
	StoreStatus storeStatus    `json:"storeStatus"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

func channelURL(login string) string {
	return "https://twitch.tv/" + login
}

func (a *api) timelineHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	weeks := timeline.DefaultWeeks
	if raw := r.URL.Query().Get("weeks"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTimelineWeeks {
			a.errorResponse(w, r, http.StatusBadRequest, "weeks must be between 1 and 52")
			return
		}
		weeks = n
	}

	now := a.now()
	since := now.AddDate(0, 0, -7*(weeks+1))

	store := storeOK
	records, err := a.streamRepo.ListSince(ctx, since)
	switch {
	case err == nil:
	case repository.IsConnectivityError(err):
		// Unreachable store: build from the live session alone.
		a.logger.Warn("stream store unreachable, serving live-only timeline", zap.Error(err))
		store, records = storeUnavailable, nil
	default:
		a.logger.Error("failed to list streams", zap.Error(err))
		a.errorResponse(w, r, http.StatusInternalServerError, "failed to list streams")
		return
	}

	var live *timeline.LiveSession
	stream, err := a.twitch.LiveStream(ctx, a.username)
	if err != nil {
		a.logger.Warn("failed to fetch live status", zap.Error(err))
	} else if stream != nil {
		live = &timeline.LiveSession{
			StartedAt: stream.StartedAt,
			Title:     stream.Title,
			URL:       channelURL(a.username),
		}
	}

	built := timeline.Build(timeline.Input{
		Records:  records,
		Live:     live,
		Now:      now,
		Location: a.location,
		Weeks:    weeks,
	})

	var currentKey string
	if current, ok := timeline.CurrentWeek(built); ok {
		currentKey = current.Key
	}

	if key := r.URL.Query().Get("week"); key != "" {
		week, ok := timeline.FindWeek(built, key)
		if !ok {
			a.errorResponse(w, r, http.StatusNotFound, "week not found")
			return
		}
		built = []timeline.Week{week}
	}

	res := timelineResponse{
		Weeks:       make([]timelineWeek, 0, len(built)),
		CurrentWeek: currentKey,
		IsLive:      live != nil,
		StoreStatus: store,
		GeneratedAt: now.UTC(),
	}
	for _, wk := range built {
		res.Weeks = append(res.Weeks, timelineWeek{Week: wk, Layout: timeline.LayoutWeek(wk)})
	}
	a.jsonResponse(w, http.StatusOK, res)
}
