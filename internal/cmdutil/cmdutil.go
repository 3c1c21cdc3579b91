package cmdutil

import (
	"context"
	"fmt"
	"strconv"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	_ "github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/opentelemetry-go-contrib/launcher"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/distributedlock"
	"github.com/sasagram/streamlog/internal/kick"
	"github.com/sasagram/streamlog/internal/mediasync"
	"github.com/sasagram/streamlog/internal/oauth"
	"github.com/sasagram/streamlog/internal/twitch"
)

func NewLogger(cfg *config.Config, debug bool) *zap.Logger {
	logger, _ := zap.NewProduction()
	if debug || !cfg.IsProduction() {
		logger, _ = zap.NewDevelopment()
	}

	return logger
}

func NewStatsdClient(cfg *config.Config, tags ...string) (statsd.ClientInterface, error) {
	if cfg.Env != "" {
		tags = append(tags, fmt.Sprintf("env:%s", cfg.Env))
	}

	if cfg.StatsdURL == "" {
		return &statsd.NoOpClient{}, nil
	}

	return statsd.New(cfg.StatsdURL, statsd.WithTags(tags))
}

// NewTracerProvider configures OpenTelemetry through the Honeycomb launcher,
// which reads HONEYCOMB_API_KEY and the OTEL_* variables. The returned func
// flushes pending spans.
func NewTracerProvider(service string) (func(), error) {
	return launcher.ConfigureOpenTelemetry(launcher.WithServiceName(service))
}

func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is not set")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	opt.PoolSize = 16

	client := redis.NewClient(opt)
	client.AddHook(redisotel.NewTracingHook())
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// NewOptionalRedisClient returns a nil client when REDIS_URL is unset.
func NewOptionalRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	return NewRedisClient(ctx, cfg)
}

func NewDatabasePool(ctx context.Context, cfg *config.Config, maxConns int) (*pgxpool.Pool, error) {
	if maxConns == 0 {
		maxConns = 1
	}

	config, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	config.MaxConns = int32(maxConns)
	config.MinConns = 1

	// Simple protocol keeps this working behind pgbouncer
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	config.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.DBQueryTimeout.Milliseconds(), 10)

	return pgxpool.NewWithConfig(ctx, config)
}

func NewQueueClient(logger *zap.Logger, conn *redis.Client, identifier string) (rmq.Connection, error) {
	errChan := make(chan error, 10)
	go func() {
		for err := range errChan {
			logger.Error("error occurred within queue", zap.Error(err))
		}
	}()

	return rmq.OpenConnectionWithRedisClient(identifier, conn, errChan)
}

// NewLease picks the redis lease when a client is available.
func NewLease(client *redis.Client) (mediasync.Lease, error) {
	if client == nil {
		return mediasync.NoLease{}, nil
	}

	dl, err := distributedlock.New(client, mediasync.LeaseTimeout)
	if err != nil {
		return nil, err
	}
	return mediasync.NewRedisLease(dl), nil
}

func NewTwitchClient(logger *zap.Logger, cfg *config.Config, statsd statsd.ClientInterface, redis *redis.Client) *twitch.Client {
	tokens := oauth.NewTokenCache(
		"twitch",
		oauth.Credentials{ClientID: cfg.Twitch.ClientID, ClientSecret: cfg.Twitch.ClientSecret},
		oauth.TwitchAttempts(),
	)

	return twitch.NewClient(tokens, statsd, redis, cfg.UpstreamTimeout, twitch.WithLogger(logger))
}

func NewKickClient(cfg *config.Config, statsd statsd.ClientInterface) *kick.Client {
	var opts []oauth.Option
	if cfg.Kick.APIKey != "" {
		opts = append(opts, oauth.WithStaticKey(cfg.Kick.APIKey))
	}

	tokens := oauth.NewTokenCache(
		"kick",
		oauth.Credentials{ClientID: cfg.Kick.ClientID, ClientSecret: cfg.Kick.ClientSecret},
		oauth.KickAttempts(cfg.Kick.AuthURL),
		opts...,
	)

	return kick.NewClient(tokens, statsd, cfg.UpstreamTimeout, kick.WithAPIKey(cfg.Kick.APIKey))
}
