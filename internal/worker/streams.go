package worker

import (
	"context"
	"errors"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/twitch"
)

const StreamsQueue = "streams"

type LiveSource interface {
	LiveStream(ctx context.Context, login string) (*twitch.Stream, error)
}

// StreamLogJob records the running broadcast and every cached VOD in the
// stream log. The live entry grows on each run; the VOD entry lands once the
// platform publishes it.
type StreamLogJob struct {
	logger  *zap.Logger
	live    LiveSource
	media   domain.MediaRepository
	streams domain.StreamRepository
	now     func() time.Time
}

func NewStreamLogJob(logger *zap.Logger, live LiveSource, media domain.MediaRepository, streams domain.StreamRepository) *StreamLogJob {
	return &StreamLogJob{
		logger:  logger,
		live:    live,
		media:   media,
		streams: streams,
		now:     time.Now,
	}
}

func channelURL(login string) string {
	return "https://twitch.tv/" + login
}

func (sj *StreamLogJob) inputs(ctx context.Context, login string) ([]domain.StreamInput, error) {
	var ins []domain.StreamInput

	stream, liveErr := sj.live.LiveStream(ctx, login)
	if liveErr != nil {
		sj.logger.Warn("failed to fetch live status", zap.String("twitch#login", login), zap.Error(liveErr))
	} else if stream != nil && !stream.StartedAt.IsZero() {
		elapsed := sj.now().Sub(stream.StartedAt).Hours()
		if elapsed < 0 {
			elapsed = 0
		}
		title, url := stream.Title, channelURL(login)
		ins = append(ins, domain.StreamInput{
			StartedAt:     stream.StartedAt,
			DurationHours: domain.RoundHours(elapsed),
			Title:         &title,
			StreamURL:     &url,
		})
	}

	vods, err := sj.media.ListVods(ctx, domain.MediaListLimit)
	if err != nil {
		if liveErr != nil {
			return nil, errors.Join(liveErr, err)
		}
		return nil, err
	}

	for _, v := range vods {
		if v.CreatedAt.IsZero() {
			continue
		}
		title, url := v.Title, v.URL
		ins = append(ins, domain.StreamInput{
			StartedAt:     v.CreatedAt,
			DurationHours: domain.ParseDurationToHours(v.Duration),
			Title:         &title,
			StreamURL:     &url,
		})
	}

	return ins, nil
}

func (sj *StreamLogJob) Run(ctx context.Context, login string) error {
	ins, err := sj.inputs(ctx, login)
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		return nil
	}

	srs, err := sj.streams.UpsertMany(ctx, ins)
	if err != nil {
		return err
	}

	sj.logger.Debug("recorded streams", zap.String("twitch#login", login), zap.Int("count", len(srs)))
	return nil
}

func NewStreamsWorker(logger *zap.Logger, statsd statsd.ClientInterface, cfg *config.Config, db *pgxpool.Pool, redis *redis.Client, queue rmq.Connection, consumers int) (Worker, error) {
	job := NewStreamLogJob(
		logger,
		cmdutil.NewTwitchClient(logger, cfg, statsd, redis),
		repository.NewPostgresMedia(db),
		repository.NewPostgresStream(db),
	)

	return newQueueWorker(logger, statsd, queue, StreamsQueue, job, consumers), nil
}
