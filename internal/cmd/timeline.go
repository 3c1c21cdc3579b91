package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/fetchcache"
	"github.com/sasagram/streamlog/internal/timeline"
)

const (
	timelineRefresh = time.Minute
	timelineTTL     = 55 * time.Second
	barWidth        = 36
)

type liveAggregate struct {
	IsLive bool `json:"isLive"`
	User   *struct {
		Login string `json:"login"`
	} `json:"user"`
	Stream *struct {
		Title     string    `json:"title"`
		StartedAt time.Time `json:"started_at"`
	} `json:"stream"`
	MediaStatus struct {
		Status       string     `json:"status"`
		LastSyncedAt *time.Time `json:"lastSyncedAt"`
	} `json:"mediaStatus"`
}

type streamList struct {
	Streams []domain.StreamRecord `json:"streams"`
}

type timelineView struct {
	Week         timeline.Week
	Layout       timeline.Layout
	IsLive       bool
	MediaStatus  string
	LastSyncedAt *time.Time
}

// loadTimeline fetches both endpoints through the cache, so repeated
// renders inside the TTL cost no requests.
func loadTimeline(ctx context.Context, cache *fetchcache.Cache, baseURL string, loc *time.Location, weeks int, now time.Time) (timelineView, error) {
	var (
		agg     liveAggregate
		records streamList
	)

	baseURL = strings.TrimSuffix(baseURL, "/")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agg, err = fetchcache.FetchJSON[liveAggregate](gctx, cache, "live-aggregate", baseURL+"/live-aggregate", timelineTTL)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = fetchcache.FetchJSON[streamList](gctx, cache, "streams", baseURL+"/streams", timelineTTL)
		return err
	})
	if err := g.Wait(); err != nil {
		return timelineView{}, err
	}

	var live *timeline.LiveSession
	if agg.IsLive && agg.Stream != nil {
		live = &timeline.LiveSession{StartedAt: agg.Stream.StartedAt, Title: agg.Stream.Title}
		if agg.User != nil && agg.User.Login != "" {
			live.URL = "https://twitch.tv/" + agg.User.Login
		}
	}

	built := timeline.Build(timeline.Input{
		Records:  records.Streams,
		Live:     live,
		Now:      now,
		Location: loc,
		Weeks:    weeks,
	})

	week, ok := timeline.CurrentWeek(built)
	if !ok {
		return timelineView{}, fmt.Errorf("no weeks to show")
	}

	return timelineView{
		Week:         week,
		Layout:       timeline.LayoutWeek(week),
		IsLive:       live != nil,
		MediaStatus:  agg.MediaStatus.Status,
		LastSyncedAt: agg.MediaStatus.LastSyncedAt,
	}, nil
}

func bar(block *timeline.Block) string {
	if block == nil {
		return strings.Repeat(".", barWidth)
	}

	left := int(math.Round(block.Left / 100 * barWidth))
	width := int(math.Round(block.Width / 100 * barWidth))
	if width < 1 {
		width = 1
	}
	if left+width > barWidth {
		left = barWidth - width
	}

	return strings.Repeat(".", left) + strings.Repeat("#", width) + strings.Repeat(".", barWidth-left-width)
}

func renderTimeline(w io.Writer, view timelineView) {
	fmt.Fprintf(w, "%s\n", view.Week.Label)

	ticks := view.Layout.Ticks
	if len(ticks) > 0 {
		fmt.Fprintf(w, "%-9s %s%s%s\n", "", ticks[0], strings.Repeat(" ", barWidth-len(ticks[0])-len(ticks[len(ticks)-1])), ticks[len(ticks)-1])
	}

	for i, c := range view.Week.Cards {
		marker := " "
		switch {
		case c.IsLive:
			marker = "*"
		case c.IsToday:
			marker = ">"
		}

		var block *timeline.Block
		if i < len(view.Layout.Blocks) {
			block = view.Layout.Blocks[i]
		}

		fmt.Fprintf(w, "%s%s %s %s  %-13s  %-12s %s\n", marker, c.DayLabel, c.DateLabel, bar(block), c.TimeRange, c.DurationLabel, c.Title)
	}

	if view.LastSyncedAt != nil {
		fmt.Fprintf(w, "media %s, synced %s\n", view.MediaStatus, humanize.Time(*view.LastSyncedAt))
	}
}

func TimelineCmd(ctx context.Context) *cobra.Command {
	var (
		baseURL string
		weeks   int
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Args:  cobra.ExactArgs(0),
		Short: "Prints the current week of the stream timeline from a running API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cache := fetchcache.New()
			defer cache.Invalidate()

			show := func() error {
				view, err := loadTimeline(ctx, cache, baseURL, cfg.TimelineLocation, weeks, time.Now())
				if err != nil {
					return err
				}
				renderTimeline(os.Stdout, view)
				return nil
			}

			if err := show(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ticker := time.NewTicker(timelineRefresh)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					fmt.Fprintln(os.Stdout)
					if err := show(); err != nil {
						fmt.Fprintf(os.Stderr, "failed to load timeline: %v\n", err)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:4000", "Base URL of the streamlog API")
	cmd.Flags().IntVar(&weeks, "weeks", timeline.DefaultWeeks, "Weeks of history to build")
	cmd.Flags().BoolVar(&watch, "watch", false, "Reprint every minute")

	return cmd
}
