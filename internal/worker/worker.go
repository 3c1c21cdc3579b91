package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/adjust/rmq/v5"
	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/config"
)

const (
	pollDuration = 100 * time.Millisecond
	jobTimeout   = 60 * time.Second
)

type NewWorkerFn func(logger *zap.Logger, statsd statsd.ClientInterface, cfg *config.Config, db *pgxpool.Pool, redis *redis.Client, queue rmq.Connection, consumers int) (Worker, error)

type Worker interface {
	Start() error
	Stop()
}

// Job handles one queue payload, which is always a Twitch login.
type Job interface {
	Run(ctx context.Context, login string) error
}

type queueWorker struct {
	logger *zap.Logger
	statsd statsd.ClientInterface
	queue  rmq.Connection
	name   string
	job    Job

	consumers int
}

func newQueueWorker(logger *zap.Logger, statsd statsd.ClientInterface, queue rmq.Connection, name string, job Job, consumers int) *queueWorker {
	if consumers < 1 {
		consumers = 1
	}

	return &queueWorker{
		logger:    logger,
		statsd:    statsd,
		queue:     queue,
		name:      name,
		job:       job,
		consumers: consumers,
	}
}

func (qw *queueWorker) Start() error {
	queue, err := qw.queue.OpenQueue(qw.name)
	if err != nil {
		return err
	}

	qw.logger.Info("starting up worker", zap.String("queue", qw.name), zap.Int("consumers", qw.consumers))

	prefetchLimit := int64(qw.consumers * 2)

	if err := queue.StartConsuming(prefetchLimit, pollDuration); err != nil {
		return err
	}

	host, _ := os.Hostname()
	session, err := uuid.NewV4()
	if err != nil {
		return err
	}

	for i := 0; i < qw.consumers; i++ {
		name := fmt.Sprintf("consumer %s-%s-%d", host, session.String()[:8], i)

		if _, err := queue.AddConsumer(name, &consumer{qw, i}); err != nil {
			return err
		}
	}

	return nil
}

func (qw *queueWorker) Stop() {
	<-qw.queue.StopAllConsuming() // wait for all Consume() calls to finish
}

type consumer struct {
	*queueWorker
	tag int
}

func (c *consumer) Consume(delivery rmq.Delivery) {
	login := delivery.Payload()
	if login == "" {
		c.logger.Error("received empty job payload", zap.String("queue", c.name))
		_ = delivery.Reject()
		return
	}

	defer func() { _ = delivery.Ack() }()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	c.logger.Debug("starting job", zap.String("queue", c.name), zap.String("twitch#login", login))

	tags := []string{"queue:" + c.name, "outcome:ok"}
	if err := c.job.Run(ctx, login); err != nil {
		tags[1] = "outcome:error"
		c.logger.Error("job failed",
			zap.String("queue", c.name),
			zap.String("twitch#login", login),
			zap.Error(err),
		)
	}

	_ = c.statsd.Incr("worker.jobs", tags, 1)
	_ = c.statsd.Histogram("worker.jobs.latency", float64(time.Since(start).Milliseconds()), tags, 1)
}
