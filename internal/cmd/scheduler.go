package cmd

import (
	"context"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/domain"
	"github.com/sasagram/streamlog/internal/worker"
)

const streamLogInterval = 1 // minutes between live stream log updates

func SchedulerCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Args:  cobra.ExactArgs(0),
		Short: "Schedules jobs and runs several maintenance tasks periodically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := cmdutil.NewLogger(cfg, false)
			defer func() { _ = logger.Sync() }()

			statsd, err := cmdutil.NewStatsdClient(cfg)
			if err != nil {
				return err
			}
			defer statsd.Close()

			db, err := cmdutil.NewDatabasePool(ctx, cfg, 1)
			if err != nil {
				return err
			}
			defer db.Close()

			redis, err := cmdutil.NewRedisClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer redis.Close()

			queue, err := cmdutil.NewQueueClient(logger, redis, "worker")
			if err != nil {
				return err
			}

			mediaQueue, err := queue.OpenQueue(worker.MediaQueue)
			if err != nil {
				return err
			}

			streamsQueue, err := queue.OpenQueue(worker.StreamsQueue)
			if err != nil {
				return err
			}

			login := cfg.Twitch.Username
			mediaMinutes := int(domain.MediaSyncPeriod / time.Minute)

			s := gocron.NewScheduler(time.UTC)
			_, _ = s.Every(mediaMinutes).Minutes().SingletonMode().Do(func() { enqueue(logger, statsd, mediaQueue, login) })
			_, _ = s.Every(streamLogInterval).Minute().SingletonMode().Do(func() { enqueue(logger, statsd, streamsQueue, login) })
			_, _ = s.Every(1).Second().Do(func() { cleanQueues(logger, queue) })
			_, _ = s.Every(1).Minute().Do(func() { reportStats(ctx, logger, statsd, db) })
			s.StartAsync()

			<-ctx.Done()

			s.Stop()

			return nil
		},
	}

	return cmd
}

func enqueue(logger *zap.Logger, statsd statsd.ClientInterface, queue rmq.Queue, login string) {
	if err := queue.Publish(login); err != nil {
		logger.Error("failed to enqueue job", zap.Error(err))
		return
	}

	_ = statsd.Incr("scheduler.enqueued", []string{}, 1)
	logger.Debug("enqueued job", zap.String("twitch#login", login))
}

func cleanQueues(logger *zap.Logger, jobsConn rmq.Connection) {
	cleaner := rmq.NewCleaner(jobsConn)
	count, err := cleaner.Clean()
	if err != nil {
		logger.Error("failed cleaning jobs from queues", zap.Error(err))
		return
	}

	logger.Debug("returned jobs to queues", zap.Int64("count", count))
}

func reportStats(ctx context.Context, logger *zap.Logger, statsd statsd.ClientInterface, pool *pgxpool.Pool) {
	var (
		count int64

		metrics = []struct {
			query string
			name  string
		}{
			{"SELECT COUNT(*) FROM streams", "streamlog.streams"},
			{"SELECT COUNT(*) FROM platform_vods", "streamlog.vods"},
			{"SELECT COUNT(*) FROM platform_clips", "streamlog.clips"},
		}
	)

	for _, metric := range metrics {
		if err := pool.QueryRow(ctx, metric.query).Scan(&count); err != nil {
			logger.Warn("failed to fetch metric", zap.String("metric", metric.name), zap.Error(err))
			continue
		}
		_ = statsd.Gauge(metric.name, float64(count), []string{}, 1)

		logger.Debug("fetched metrics", zap.Int64("count", count), zap.String("metric", metric.name))
	}
}
