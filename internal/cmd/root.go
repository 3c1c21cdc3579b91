package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/bugsnag/bugsnag-go/v2"
	_ "github.com/heroku/x/hmetrics/onload"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// profiler writes a CPU profile for the whole command run and a heap profile
// at the end, both into dir.
type profiler struct {
	dir string
	cpu *os.File
}

func (p *profiler) start() error {
	if p.dir == "" {
		return nil
	}

	f, err := os.Create(filepath.Join(p.dir, "cpu.pprof"))
	if err != nil {
		return err
	}
	p.cpu = f

	return pprof.StartCPUProfile(f)
}

func (p *profiler) stop() error {
	if p.cpu == nil {
		return nil
	}

	pprof.StopCPUProfile()
	cerr := p.cpu.Close()

	f, err := os.Create(filepath.Join(p.dir, "mem.pprof"))
	if err != nil {
		return errors.Join(cerr, err)
	}
	defer f.Close()

	runtime.GC()
	return errors.Join(cerr, pprof.WriteHeapProfile(f))
}

// loadEnv reads envFile when given, otherwise an optional .env in the
// working directory.
func loadEnv(envFile string) error {
	if envFile == "" {
		_ = godotenv.Load()
		return nil
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

func configureBugsnag() {
	key := os.Getenv("BUGSNAG_API_KEY")
	if key == "" {
		return
	}

	bugsnag.Configure(bugsnag.Configuration{
		APIKey:          key,
		ReleaseStage:    os.Getenv("ENV"),
		ProjectPackages: []string{"main", "github.com/sasagram/streamlog/*"},
	})
}

func Execute(ctx context.Context) int {
	var (
		envFile string
		prof    profiler
	)

	rootCmd := &cobra.Command{
		Use:          "streamlog",
		Short:        "Keeps the stream log, VOD cache and weekly timeline for the channel site.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnv(envFile); err != nil {
				return err
			}
			configureBugsnag()

			return prof.start()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return prof.stop()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (defaults to ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&prof.dir, "profile-dir", "", "write cpu.pprof and mem.pprof into this directory")

	rootCmd.AddCommand(
		APICmd(ctx),
		SchedulerCmd(ctx),
		WorkerCmd(ctx),
		MigrateCmd(ctx),
		ImportCmd(ctx),
		TimelineCmd(ctx),
	)

	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}
