package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seantiz/tablesnap/internal/api"
	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/engine"
	"github.com/seantiz/tablesnap/internal/model"
	"github.com/seantiz/tablesnap/internal/pipeline"
	"github.com/seantiz/tablesnap/internal/scheduler"
)

func main() {
	cfg, err := loadSettings()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("tablesnap: starting",
		"run_mode", cfg.RunMode,
		"listen_addr", cfg.ListenAddr,
	)

	defs := pipeline.New()
	g, reg, err := defs.Build()
	if err != nil {
		log.Fatalf("invalid definitions: %v", err)
	}
	eng := engine.New(g, reg, newSink(cfg, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if cfg.RunMode == config.RunModeOnce {
		ok := runOnce(ctx, eng, defs.Jobs, logger)
		stop()
		if !ok {
			os.Exit(1)
		}
		return
	}

	err = serve(ctx, cfg, eng, defs.Schedules, logger)
	stop()
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// loadSettings reads the env file named by the process environment, without
// overriding variables already set, then resolves settings.
func loadSettings() (config.Settings, error) {
	cfg, err := config.Load(config.EnvironFromOS())
	if err != nil {
		return config.Settings{}, err
	}
	if err := godotenv.Load(cfg.EnvFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return config.Settings{}, err
		}
		return cfg, nil
	}
	return config.Load(config.EnvironFromOS())
}

// newSink logs run events and, when an alert webhook is configured, also
// posts failures to it.
func newSink(cfg config.Settings, logger *slog.Logger) engine.Sink {
	sink := engine.SlogSink{Logger: logger}
	if cfg.AlertWebhookURL == "" {
		return sink
	}
	return engine.MultiSink{sink, engine.NewWebhookSink(cfg.AlertWebhookURL, logger)}
}

// runLogger returns a function that logs a one-line summary of a finished run.
func runLogger(logger *slog.Logger) func(*engine.RunResult) {
	return func(res *engine.RunResult) {
		logger.Info("job run finished",
			"job", res.Job,
			"run_id", res.RunID,
			"success", res.Success,
			"succeeded", res.Count(model.StatusSucceeded),
			"failed", res.Count(model.StatusFailed),
			"skipped", res.Count(model.StatusSkipped),
			"resources", res.Resources,
		)
	}
}

// runOnce runs every job a single time and reports whether all succeeded.
func runOnce(ctx context.Context, eng *engine.Engine, jobs []asset.Job, logger *slog.Logger) bool {
	report := runLogger(logger)
	ok := true
	for _, job := range jobs {
		res := eng.Run(ctx, job, config.EnvironFromOS())
		report(res)
		ok = ok && res.Success
	}
	return ok
}

// serve runs the scheduler and the operational HTTP server until ctx is
// cancelled, then waits for in-flight runs.
func serve(ctx context.Context, cfg config.Settings, eng *engine.Engine, schedules []scheduler.Schedule, logger *slog.Logger) error {
	sched, err := scheduler.New(eng, schedules,
		scheduler.WithLogger(logger),
		scheduler.WithResultHook(runLogger(logger)),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sched.Start(ctx)

	srv := api.NewServer(cfg.ListenAddr, sched, logger)
	err = srv.Run(ctx)

	cancel()
	logger.Info("waiting for in-flight runs")
	sched.Wait()
	return err
}
