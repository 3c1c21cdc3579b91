package cmd

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sasagram/streamlog/internal/cmdutil"
	"github.com/sasagram/streamlog/internal/config"
	"github.com/sasagram/streamlog/internal/worker"
)

var queues = map[string]worker.NewWorkerFn{
	worker.MediaQueue:   worker.NewMediaWorker,
	worker.StreamsQueue: worker.NewStreamsWorker,
}

func queueNames() []string {
	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selectQueues resolves --queue values, defaulting to every queue. Duplicates
// collapse and the result is sorted.
func selectQueues(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return queueNames(), nil
	}

	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := queues[id]; !ok {
			return nil, fmt.Errorf("invalid queue %q (want one of %v)", id, queueNames())
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	sort.Strings(out)
	return out, nil
}

func WorkerCmd(ctx context.Context) *cobra.Command {
	var (
		multiplier int
		queueIDs   []string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Args:  cobra.ExactArgs(0),
		Short: "Consumes media and stream-log jobs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := selectQueues(queueIDs)
			if err != nil {
				return err
			}
			if multiplier < 1 {
				return fmt.Errorf("--multiplier must be at least 1")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := cmdutil.NewLogger(cfg, false)
			defer func() { _ = logger.Sync() }()

			if shutdown, err := cmdutil.NewTracerProvider("streamlog-worker"); err == nil {
				defer shutdown()
			} else {
				logger.Warn("tracing disabled", zap.Error(err))
			}

			tags := make([]string, 0, len(ids))
			for _, id := range ids {
				tags = append(tags, "queue:"+id)
			}
			statsd, err := cmdutil.NewStatsdClient(cfg, tags...)
			if err != nil {
				return err
			}
			defer statsd.Close()

			consumers := runtime.NumCPU() * multiplier

			db, err := cmdutil.NewDatabasePool(ctx, cfg, consumers*len(ids))
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

			running := make([]worker.Worker, 0, len(ids))
			defer func() {
				for _, w := range running {
					w.Stop()
				}
			}()

			for _, id := range ids {
				w, err := queues[id](logger, statsd, cfg, db, redis, queue, consumers)
				if err != nil {
					return fmt.Errorf("queue %s: %w", id, err)
				}
				if err := w.Start(); err != nil {
					return fmt.Errorf("queue %s: %w", id, err)
				}
				running = append(running, w)
			}

			logger.Info("worker started", zap.Strings("queues", ids), zap.Int("consumers", consumers))
			<-ctx.Done()

			return nil
		},
	}

	cmd.Flags().IntVar(&multiplier, "multiplier", 1, "Consumers per CPU for each queue")
	cmd.Flags().StringSliceVar(&queueIDs, "queue", nil, "Queues to consume (defaults to all)")

	return cmd
}
