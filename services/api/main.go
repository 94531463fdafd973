package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zerotwo/gios-airsync/internal/config"
	"github.com/zerotwo/gios-airsync/internal/db"
	"github.com/zerotwo/gios-airsync/internal/gios"
	httpserver "github.com/zerotwo/gios-airsync/internal/http"
	"github.com/zerotwo/gios-airsync/internal/logging"
	"github.com/zerotwo/gios-airsync/internal/metrics"
	"github.com/zerotwo/gios-airsync/internal/updater"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection error", zap.Error(err))
	}
	defer store.Close()

	syncMetrics, err := metrics.New()
	if err != nil {
		logger.Fatal("metrics error", zap.Error(err))
	}

	client := gios.NewClient(cfg.BaseURL, &http.Client{Timeout: cfg.RequestTimeout}, gios.WithLogger(logger.Named("gios")))
	u := updater.NewForStore(store, client,
		updater.WithLogger(logger.Named("updater")),
		updater.WithMetrics(syncMetrics),
		updater.WithWorkers(cfg.Workers),
	)

	srv := httpserver.New(cfg, store, u, logger.Named("http"))
	logger.Info("REST API listening", zap.String("addr", cfg.ListenAddr()))

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
