package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/twitch"
)

const defaultCategory = "Стрим"

type scheduleUser struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type scheduleResponse struct {
	Segments []twitch.Segment `json:"segments"`
	Vacation *twitch.Vacation `json:"vacation"`
	User     scheduleUser     `json:"user"`
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func (a *api) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := a.twitch.UserByLogin(ctx, a.username)
	if err != nil {
		a.upstreamError(w, r, "failed to fetch channel", err)
		return
	}

	schedule, err := a.twitch.Schedule(ctx, user.ID, monthStart(a.now().In(a.location)))
	if err != nil {
		a.upstreamError(w, r, "failed to fetch schedule", err)
		return
	}

	seen := map[string]bool{}
	var ids []string
	for _, seg := range schedule.Segments {
		if seg.CategoryID != "" && seg.CategoryName == "" && !seen[seg.CategoryID] {
			seen[seg.CategoryID] = true
			ids = append(ids, seg.CategoryID)
		}
	}

	names := map[string]string{}
	if len(ids) > 0 {
		if names, err = a.twitch.Games(ctx, ids); err != nil {
			a.logger.Warn("failed to resolve schedule categories", zap.Error(err))
			names = map[string]string{}
		}
	}

	segments := make([]twitch.Segment, 0, len(schedule.Segments))
	for _, seg := range schedule.Segments {
		if seg.CategoryName == "" {
			seg.CategoryName = names[seg.CategoryID]
		}
		if seg.CategoryName == "" {
			seg.CategoryName = defaultCategory
		}
		segments = append(segments, seg)
	}

	w.Header().Set("Cache-Control", "s-maxage=300, stale-while-revalidate=60")
	a.jsonResponse(w, http.StatusOK, scheduleResponse{
		Segments: segments,
		Vacation: schedule.Vacation,
		User: scheduleUser{
			ID:          user.ID,
			Login:       user.Login,
			DisplayName: user.DisplayName,
		},
	})
}
