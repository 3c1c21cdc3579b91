package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/twitch"
)

const (
	importPageSize = 100
	importMaxPages = 50
)

type videoLister interface {
	Videos(ctx context.Context, userID string, first int, opts ...twitch.RequestOption) (*twitch.VideoListing, error)
}

// collectVods pages through the archive newest first and stops at the first
// page that reaches past since.
func collectVods(ctx context.Context, vl videoLister, userID string, since time.Time) ([]domain.Vod, error) {
	var (
		out    []domain.Vod
		cursor string
	)

	for page := 0; page < importMaxPages; page++ {
		var opts []twitch.RequestOption
		if cursor != "" {
			opts = append(opts, twitch.WithCursor(cursor))
		}

		listing, err := vl.Videos(ctx, userID, importPageSize, opts...)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		reachedSince := false
		for _, v := range listing.Vods {
			if v.CreatedAt.Before(since) {
				reachedSince = true
				continue
			}
			out = append(out, v)
		}

		if reachedSince || listing.Cursor == "" || len(listing.Vods) == 0 {
			break
		}
		cursor = listing.Cursor
	}

	return out, nil
}

func vodInputs(vods []domain.Vod) []domain.StreamInput {
	ins := make([]domain.StreamInput, 0, len(vods))
	for _, v := range vods {
		title, url := v.Title, v.URL
		ins = append(ins, domain.StreamInput{
			StartedAt:     v.CreatedAt,
			DurationHours: domain.ParseDurationToHours(v.Duration),
			Title:         &title,
			StreamURL:     &url,
		})
	}
	return ins
}

func ImportCmd(ctx context.Context) *cobra.Command {
	var (
		since  string
		login  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Args:  cobra.ExactArgs(0),
		Short: "Backfills the stream log from the channel's past broadcasts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			cutoff, err := time.ParseInLocation("2006-01-02", since, cfg.TimelineLocation)
			if err != nil {
				return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
			}
			if login == "" {
				login = cfg.Twitch.Username
			}

			logger := cmdutil.NewLogger(cfg, false)
			defer func() { _ = logger.Sync() }()

			statsd, err := cmdutil.NewStatsdClient(cfg)
			if err != nil {
				return err
			}
			defer statsd.Close()

			tc := cmdutil.NewTwitchClient(logger, cfg, statsd, nil)

			user, err := tc.UserByLogin(ctx, login)
			if err != nil {
				return err
			}

			vods, err := collectVods(ctx, tc, user.ID, cutoff)
			if err != nil {
				return err
			}

			logger.Info("collected past broadcasts", zap.String("twitch#login", login), zap.Int("count", len(vods)))
			if dryRun || len(vods) == 0 {
				return nil
			}

			db, err := cmdutil.NewDatabasePool(ctx, cfg, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			srs, err := repository.NewPostgresStream(db).UpsertMany(ctx, vodInputs(vods))
			if err != nil {
				return err
			}

			logger.Info("imported streams", zap.Int("count", len(srs)))
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "2026-01-01", "Oldest broadcast date to import (YYYY-MM-DD)")
	cmd.Flags().StringVar(&login, "login", "", "Twitch login (defaults to TWITCH_USERNAME)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report what would be imported")

	return cmd
}
