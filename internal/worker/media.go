package worker

import (
	"context"
	"errors"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/mediasync"
	"github.com/sasagram/streamlog/internal/repository"
	"github.com/sasagram/streamlog/internal/twitch"
)

const MediaQueue = "media"

type UserResolver interface {
	UserByLogin(ctx context.Context, login string) (*twitch.User, error)
}

type Refresher interface {
	Refresh(ctx context.Context, userID string) error
}

// MediaJob refreshes the cached VOD and clip lists in the background so
// request handlers rarely have to.
type MediaJob struct {
	logger *zap.Logger
	users  UserResolver
	syncer Refresher
}

func NewMediaJob(logger *zap.Logger, users UserResolver, syncer Refresher) *MediaJob {
	return &MediaJob{logger: logger, users: users, syncer: syncer}
}

func (mj *MediaJob) Run(ctx context.Context, login string) error {
	user, err := mj.users.UserByLogin(ctx, login)
	if err != nil {
		return err
	}

	err = mj.syncer.Refresh(ctx, user.ID)
	if errors.Is(err, mediasync.ErrLeaseHeld) {
		mj.logger.Debug("media sync already running, skipping", zap.String("twitch#login", login))
		return nil
	}
	if err != nil {
		return err
	}

	mj.logger.Debug("synced media", zap.String("twitch#login", login))
	return nil
}

func NewMediaWorker(logger *zap.Logger, statsd statsd.ClientInterface, cfg *config.Config, db *pgxpool.Pool, redis *redis.Client, queue rmq.Connection, consumers int) (Worker, error) {
	tc := cmdutil.NewTwitchClient(logger, cfg, statsd, redis)

	lease, err := cmdutil.NewLease(redis)
	if err != nil {
		return nil, err
	}

	syncer := mediasync.NewSyncer(
		logger,
		statsd,
		repository.NewPostgresMedia(db),
		repository.NewPostgresCacheState(db),
		tc,
		mediasync.WithTTL(cfg.MediaCacheTTL),
		mediasync.WithLease(lease),
	)

	return newQueueWorker(logger, statsd, queue, MediaQueue, NewMediaJob(logger, tc, syncer), consumers), nil
}
