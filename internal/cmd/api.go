package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/api"
	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/mediasync"
	"github.com/sasagram/streamlog/internal/repository"
)

func APICmd(ctx context.Context) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "api",
		Args:  cobra.ExactArgs(0),
		Short: "Runs the RESTful API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}

			logger := cmdutil.NewLogger(cfg, false)
			defer func() { _ = logger.Sync() }()

			shutdown, err := cmdutil.NewTracerProvider("streamlog-api")
			if err != nil {
				logger.Warn("tracing disabled", zap.Error(err))
			} else {
				defer shutdown()
			}

			statsd, err := cmdutil.NewStatsdClient(cfg)
			if err != nil {
				return err
			}
			defer statsd.Close()

			db, err := cmdutil.NewDatabasePool(ctx, cfg, 4)
			if err != nil {
				return err
			}
			defer db.Close()

			redis, err := cmdutil.NewOptionalRedisClient(ctx, cfg)
			if err != nil {
				return err
			}
			if redis != nil {
				defer redis.Close()
			}

			lease, err := cmdutil.NewLease(redis)
			if err != nil {
				return err
			}

			tc := cmdutil.NewTwitchClient(logger, cfg, statsd, redis)
			kc := cmdutil.NewKickClient(cfg, statsd)

			syncer := mediasync.NewSyncer(
				logger,
				statsd,
				repository.NewPostgresMedia(db),
				repository.NewPostgresCacheState(db),
				tc,
				mediasync.WithTTL(cfg.MediaCacheTTL),
				mediasync.WithLease(lease),
			)

			a := api.NewAPI(logger, statsd, cfg, tc, kc, syncer, repository.NewPostgresStream(db))
			srv := a.Server(port)

			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("api server stopped", zap.Error(err))
				}
			}()

			logger.Info("started api", zap.Int("port", port))

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 4000, "The port to listen on (defaults to PORT)")

	return cmd
}
