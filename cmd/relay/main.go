// Command relay forwards the WH2900 captures waiting on disk to every
// configured target, then applies the retention policy. It is meant to be
// run periodically by a timer; each invocation drains the backlog once.
//
// Usage:
//
//	relay [config.toml]
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wh2900-relay/internal/config"
	"github.com/couchcryptid/wh2900-relay/internal/dispatch"
	"github.com/couchcryptid/wh2900-relay/internal/ingest"
	"github.com/couchcryptid/wh2900-relay/internal/observability"
	"github.com/couchcryptid/wh2900-relay/internal/pipeline"
	"github.com/couchcryptid/wh2900-relay/internal/targets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], clockwork.NewRealClock())
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, clock clockwork.Clock) int {
	path := config.ResolvePath(args)
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			slog.Error("config file not found", "path", path)
		} else {
			slog.Error("failed to load config", "path", path, "error", err)
		}
		return 1
	}
	g := cfg.General

	logger := observability.NewLogger(g.LogLevel, g.LogFormat).With("run_id", uuid.NewString())
	metrics := observability.NewMetrics()

	set, err := targets.Build(ctx, cfg.Targets, targets.Deps{
		Timeout: g.RequestTimeout.Duration,
		Clock:   clock,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to build targets", "error", err)
		return 1
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Error("target close error", "error", err)
		}
	}()

	dispatcher := dispatch.New(set.Targets, clock, logger, metrics,
		dispatch.WithTimeout(g.RequestTimeout.Duration),
		dispatch.WithPushStateFile(g.PushStateFile),
	)
	if dispatcher.ActiveCount() == 0 {
		logger.Error("no active targets", "config", cfg.Path, "configured", len(set.Targets))
		return 1
	}
	if err := dispatcher.LoadPushState(ctx); err != nil {
		logger.Warn("push state unavailable, rate limits start fresh", "error", err)
	}

	logger.Info("relay run starting",
		"config", cfg.Path,
		"capture_dir", g.CaptureDir,
		"policy", cfg.Policy,
		"active_targets", dispatcher.ActiveCount(),
	)

	p := pipeline.New(pipeline.Options{
		CaptureDir:     g.CaptureDir,
		CapturePattern: g.CapturePattern,
		RainThreshold:  g.RainThresholdMM,
		Policy:         cfg.Policy,
	},
		ingest.New(logger, metrics),
		dispatcher,
		pipeline.FileRainState(g.RainStateFile, clock, g.LockTimeout.Duration),
		clock, logger, metrics,
	)

	summary, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline error", "error", err)
		return 1
	}

	// Persist rate limits and metrics even when interrupted.
	flushCtx := context.WithoutCancel(ctx)
	if err := dispatcher.SavePushState(flushCtx); err != nil {
		logger.Error("failed to save push state", "error", err)
	}
	if err := metrics.Export(flushCtx, g.MetricsTextfile, g.MetricsPushgateway); err != nil {
		logger.Error("failed to export metrics", "error", err)
	}

	logger.Info("relay run complete",
		"files", summary.Files,
		"records", summary.Records,
		"skipped", summary.Skipped,
		"deleted", summary.Deleted,
		"interrupted", summary.Interrupted,
	)
	return 0
}
