package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zerotwo/gios-airsync/internal/config"
	"github.com/zerotwo/gios-airsync/internal/db"
	"github.com/zerotwo/gios-airsync/internal/gios"
	"github.com/zerotwo/gios-airsync/internal/logging"
	"github.com/zerotwo/gios-airsync/internal/metrics"
	"github.com/zerotwo/gios-airsync/internal/scheduler"
	"github.com/zerotwo/gios-airsync/internal/updater"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("watcher failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if len(cfg.Cities) == 0 {
		return errors.New("SYNC_CITIES is required")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	client := gios.NewClient(cfg.BaseURL, &http.Client{Timeout: cfg.RequestTimeout}, gios.WithLogger(logger.Named("gios")))

	if cfg.Bootstrap {
		if err := bootstrap(ctx, cfg, store, client, logger); err != nil {
			return err
		}
	}

	metricOpts := []metrics.Option{}
	if len(cfg.DurationBuckets) > 0 {
		metricOpts = append(metricOpts, metrics.WithBuckets(cfg.DurationBuckets))
	}
	syncMetrics, err := metrics.New(metricOpts...)
	if err != nil {
		return err
	}

	u := updater.NewForStore(store, client,
		updater.WithLogger(logger.Named("updater")),
		updater.WithMetrics(syncMetrics),
		updater.WithWorkers(cfg.Workers),
		updater.WithDryRun(cfg.DryRun),
	)
	sched := scheduler.New(cfg.Cities, cfg.Interval, cfg.RunTimeout, u, logger.Named("scheduler"))

	if cfg.Interval <= 0 {
		total := sched.RunOnce(ctx)
		logger.Info("watcher finished", zap.Int("inserted", total), zap.Bool("dry_run", cfg.DryRun))
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	logger.Info("watcher scheduled", zap.Strings("cities", cfg.Cities), zap.Duration("interval", cfg.Interval))
	<-ctx.Done()
	logger.Info("watcher stopping")
	return nil
}

// bootstrap creates missing tables and registers the stations and sensors of
// the configured cities.
func bootstrap(ctx context.Context, cfg config.Config, store *db.Store, client *gios.Client, logger *zap.Logger) error {
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	catalog := updater.NewCatalog(store, client, logger.Named("catalog"))
	for _, city := range cfg.Cities {
		if _, err := catalog.Sync(ctx, city); err != nil {
			return err
		}
	}
	return nil
}
