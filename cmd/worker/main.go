// Command worker runs the background processing daemons: the job queue worker
// (enrichment and research jobs), the list sync worker, and the periodic
// analysis cache purge. It runs until SIGINT/SIGTERM and shuts down
// gracefully.
//
// Exit codes: 0 = clean shutdown, 1 = error.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krzemienski/awesome-site-sub002/internal/adapter/postgres"
	"github.com/krzemienski/awesome-site-sub002/internal/app"
	"github.com/krzemienski/awesome-site-sub002/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("worker starting", slog.String("version", app.BuildVersion()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps := buildDeps(pool, logger, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.jobWorker.Run(gctx) })
	g.Go(func() error { return deps.syncWorker.Run(gctx) })
	g.Go(func() error { return runCachePurge(gctx, deps, cfg.Cache.PurgeInterval, logger) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// runCachePurge deletes expired analysis cache rows on a fixed interval.
func runCachePurge(ctx context.Context, deps *deps, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			purged, err := deps.analysisSvc.PurgeExpired(ctx)
			if err != nil {
				logger.Error("cache purge failed", slog.String("error", err.Error()))
				continue
			}
			if purged > 0 {
				logger.Info("cache purged", slog.Int("entries", purged))
			}
		}
	}
}
