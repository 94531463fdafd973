package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/zerotwo/gios-airsync/internal/updater"
)

// CityUpdater is satisfied by *updater.Updater.
type CityUpdater interface {
	UpdateCity(ctx context.Context, city string, progress updater.ProgressFunc) (int, error)
}

// Scheduler periodically re-syncs the configured cities.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	updater    CityUpdater
	cities     []string
	interval   time.Duration
	runTimeout time.Duration
	log        *zap.Logger
}

// New creates a new Scheduler. runTimeout bounds each city sync; zero means no
// deadline.
func New(cities []string, interval, runTimeout time.Duration, u CityUpdater, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		updater:    u,
		cities:     cities,
		interval:   interval,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run starts immediately. Every run uses ctx, so cancelling it aborts a
// sync in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cities) == 0 {
		s.log.Info("scheduler: no cities configured; nothing to schedule")
		return nil
	}
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce syncs every configured city one after another and returns the total
// inserted. A failing city is logged and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.log.Info("scheduler: running sync job", zap.Int("cities", len(s.cities)))

	total := 0
	for _, city := range s.cities {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		}

		n, err := s.updater.UpdateCity(runCtx, city, nil)
		cancel()
		if err != nil {
			s.log.Error("scheduler: sync failed", zap.String("city", city), zap.Error(err))
			continue
		}
		total += n
	}

	s.log.Info("scheduler: completed sync job", zap.Int("inserted", total))
	return total
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
