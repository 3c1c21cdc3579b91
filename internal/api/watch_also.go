package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sasagram/streamlog/internal/twitch"
)

type creatorState struct {
	Platform    string `json:"platform"`
	IsLive      bool   `json:"isLive"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type watchAlsoResponse struct {
	Creators  map[string]creatorState `json:"creators"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

func (a *api) watchAlsoHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var mu sync.Mutex
	creators := map[string]creatorState{}
	set := func(key string, cs creatorState) {
		mu.Lock()
		defer mu.Unlock()
		creators[key] = cs
	}

	var g errgroup.Group
	g.Go(func() error {
		for key, cs := range a.twitchCreators(ctx) {
			set(key, cs)
		}
		return nil
	})
	for _, slug := range a.watchAlsoKick {
		slug := slug
		g.Go(func() error {
			if cs, ok := a.kickCreator(ctx, slug); ok {
				set(strings.ToLower(slug), cs)
			}
			return nil
		})
	}
	_ = g.Wait()

	w.Header().Set("Cache-Control", "s-maxage=60, stale-while-revalidate=30")
	a.jsonResponse(w, http.StatusOK, watchAlsoResponse{
		Creators:  creators,
		FetchedAt: a.now().UTC(),
	})
}

// twitchCreators returns nothing on failure so the page keeps its own
// fallback values.
func (a *api) twitchCreators(ctx context.Context) map[string]creatorState {
	if len(a.watchAlsoTwitch) == 0 {
		return nil
	}

	var (
		users   []*twitch.User
		streams []*twitch.Stream
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = a.twitch.UsersByLogin(gctx, a.watchAlsoTwitch)
		return err
	})
	g.Go(func() error {
		var err error
		streams, err = a.twitch.StreamsByLogin(gctx, a.watchAlsoTwitch)
		return err
	})
	if err := g.Wait(); err != nil {
		a.logger.Warn("failed to fetch twitch creators", zap.Error(err))
		return nil
	}

	live := make(map[string]bool, len(streams))
	for _, s := range streams {
		live[strings.ToLower(s.UserLogin)] = true
	}

	byLogin := make(map[string]*twitch.User, len(users))
	for _, u := range users {
		byLogin[strings.ToLower(u.Login)] = u
	}

	out := make(map[string]creatorState, len(a.watchAlsoTwitch))
	for _, login := range a.watchAlsoTwitch {
		key := strings.ToLower(login)
		cs := creatorState{Platform: "Twitch", IsLive: live[key], DisplayName: login}
		if u, ok := byLogin[key]; ok {
			cs.AvatarURL = u.ProfileImageURL
			if u.DisplayName != "" {
				cs.DisplayName = u.DisplayName
			}
		}
		out[key] = cs
	}
	return out
}

func (a *api) kickCreator(ctx context.Context, slug string) (creatorState, bool) {
	c, err := a.kick.Creator(ctx, slug)
	if err != nil {
		a.logger.Warn("failed to fetch kick creator", zap.String("kick#slug", slug), zap.Error(err))
		return creatorState{}, false
	}

	return creatorState{
		Platform:    "Kick",
		IsLive:      c.IsLive,
		AvatarURL:   c.AvatarURL,
		DisplayName: slug,
	}, true
}
