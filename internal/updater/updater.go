// Package updater keeps the local store in step with the remote air-quality
// source. UpdateCity is the incremental sync for one city: it reads the
// stored baseline per sensor, fetches each sensor's current series and
// appends only readings strictly newer than that baseline.
package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zerotwo/gios-airsync/internal/db"
	"github.com/zerotwo/gios-airsync/internal/metrics"
	"github.com/zerotwo/gios-airsync/internal/models"
)

// ProgressFunc is called once per processed sensor with the number of sensors
// completed so far and the total for the run.
type ProgressFunc func(done, total int)

// Store is the persistence a sync run reads from and writes to.
type Store interface {
	StationsInCity(ctx context.Context, city string) ([]int64, error)
	SensorsForStations(ctx context.Context, stationIDs []int64) ([]models.SensorRef, error)
	LatestTimestamps(ctx context.Context, stationIDs []int64) (map[int64]models.Baseline, error)
	InsertMeasurements(ctx context.Context, sensorID int64, entries []models.MeasurementEntry) (int, error)
}

// Transactor opens a transaction scope and hands fn a Store bound to it. The
// scope commits if fn returns nil and is released on every exit path.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Source is the remote measurement feed.
type Source interface {
	Measurements(ctx context.Context, sensorID int64) ([]models.MeasurementEntry, error)
}

// errDryRun unwinds the transaction of a dry run after counting.
var errDryRun = errors.New("dry run")

// Updater runs incremental syncs.
type Updater struct {
	tx      Transactor
	source  Source
	log     *zap.Logger
	metrics *metrics.Sync
	workers int
	dryRun  bool
	now     func() time.Time
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.log = l
		}
	}
}

// WithMetrics records run outcomes on m.
func WithMetrics(m *metrics.Sync) Option {
	return func(u *Updater) { u.metrics = m }
}

// WithWorkers fetches up to n sensors concurrently. Values below 2 keep the
// sequential behaviour.
func WithWorkers(n int) Option {
	return func(u *Updater) {
		if n < 1 {
			n = 1
		}
		u.workers = n
	}
}

// WithDryRun makes UpdateCity roll back its writes while still reporting how
// many measurements would have been stored.
func WithDryRun(dry bool) Option {
	return func(u *Updater) { u.dryRun = dry }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		if now != nil {
			u.now = now
		}
	}
}

// New creates an Updater.
func New(tx Transactor, source Source, opts ...Option) *Updater {
	u := &Updater{
		tx:      tx,
		source:  source,
		log:     zap.NewNop(),
		workers: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// NewForStore wires an Updater to a pgx-backed store.
func NewForStore(st *db.Store, source Source, opts ...Option) *Updater {
	return New(pgTransactor{st: st}, source, opts...)
}

type pgTransactor struct {
	st *db.Store
}

func (p pgTransactor) InTx(ctx context.Context, fn func(Store) error) error {
	return p.st.InTx(ctx, func(tx *db.Store) error { return fn(tx) })
}

// NormalizeCity trims a city name for scope matching. Case folding is left to
// the store so both sides of the comparison use the same rules.
func NormalizeCity(city string) string {
	return strings.TrimSpace(city)
}

// UpdateCity syncs every known sensor of city inside its own transaction and
// returns the number of measurements inserted. progress may be nil. The run is
// recorded once the transaction outcome is known.
func (u *Updater) UpdateCity(ctx context.Context, city string, progress ProgressFunc) (int, error) {
	started := u.now()
	scope := NormalizeCity(city)
	log := u.runLogger(scope)

	var (
		inserted int
		status   string
	)
	err := u.tx.InTx(ctx, func(s Store) error {
		n, st, err := u.run(ctx, log, s, scope, progress)
		inserted, status = n, st
		if err != nil {
			return err
		}
		if u.dryRun {
			return errDryRun
		}
		return nil
	})
	if errors.Is(err, errDryRun) {
		err = nil
	}
	if err != nil {
		status = metrics.StatusFailed
	}
	return u.finish(log, scope, status, inserted, started, err)
}

// UpdateCityWith runs the sync against a caller-owned scope. It never commits;
// the caller decides what happens to the writes.
func (u *Updater) UpdateCityWith(ctx context.Context, s Store, city string, progress ProgressFunc) (int, error) {
	started := u.now()
	scope := NormalizeCity(city)
	log := u.runLogger(scope)

	n, status, err := u.run(ctx, log, s, scope, progress)
	return u.finish(log, scope, status, n, started, err)
}

func (u *Updater) runLogger(city string) *zap.Logger {
	return u.log.With(zap.String("run_id", uuid.NewString()), zap.String("city", city))
}

// finish records the outcome of a run and logs it.
func (u *Updater) finish(log *zap.Logger, city, status string, n int, started time.Time, err error) (int, error) {
	if err != nil {
		n = 0
	}
	recorded := n
	if u.dryRun {
		recorded = 0
	}
	took := u.now().Sub(started)
	u.metrics.RunFinished(city, status, recorded, took, u.now())
	if err != nil {
		log.Error("sync failed", zap.Error(err))
		return 0, err
	}

	log.Info("sync finished",
		zap.Int("inserted", n),
		zap.Bool("dry_run", u.dryRun),
		zap.Duration("took", took),
	)
	return n, nil
}

func (u *Updater) run(ctx context.Context, log *zap.Logger, s Store, city string, progress ProgressFunc) (int, string, error) {
	stationIDs, err := s.StationsInCity(ctx, city)
	if err != nil {
		return 0, metrics.StatusFailed, fmt.Errorf("resolve stations: %w", err)
	}
	if len(stationIDs) == 0 {
		log.Info("no stations found for city")
		return 0, metrics.StatusEmpty, nil
	}

	sensors, err := s.SensorsForStations(ctx, stationIDs)
	if err != nil {
		return 0, metrics.StatusFailed, fmt.Errorf("resolve sensors: %w", err)
	}
	if len(sensors) == 0 {
		log.Info("no sensors found for city", zap.Int("stations", len(stationIDs)))
		return 0, metrics.StatusEmpty, nil
	}

	baselines, err := s.LatestTimestamps(ctx, stationIDs)
	if err != nil {
		return 0, metrics.StatusFailed, fmt.Errorf("resolve baselines: %w", err)
	}

	log.Info("sync started", zap.Int("stations", len(stationIDs)), zap.Int("sensors", len(sensors)))

	var total int
	if u.workers > 1 {
		total, err = u.syncConcurrent(ctx, log, s, city, sensors, baselines, progress)
	} else {
		total, err = u.syncSequential(ctx, log, s, city, sensors, baselines, progress)
	}
	if err != nil {
		return 0, metrics.StatusFailed, err
	}
	return total, metrics.StatusOK, nil
}

func (u *Updater) syncSequential(
	ctx context.Context,
	log *zap.Logger,
	s Store,
	city string,
	sensors []models.SensorRef,
	baselines map[int64]models.Baseline,
	progress ProgressFunc,
) (int, error) {
	total := 0
	for i, ref := range sensors {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		fresh, ok, err := u.fetchFresh(ctx, log, city, ref, baselines[ref.SensorID])
		if err != nil {
			return 0, err
		}
		if ok && len(fresh) > 0 {
			n, err := s.InsertMeasurements(ctx, ref.SensorID, fresh)
			if err != nil {
				return 0, fmt.Errorf("insert measurements for sensor %d: %w", ref.SensorID, err)
			}
			total += n
		}

		u.metrics.SensorProcessed(city)
		if progress != nil {
			progress(i+1, len(sensors))
		}
	}
	return total, nil
}

// syncConcurrent fetches sensors in parallel. The baseline map was built before
// any fetch started; inserts and progress go through one mutex so the
// transaction sees a single writer.
func (u *Updater) syncConcurrent(
	ctx context.Context,
	log *zap.Logger,
	s Store,
	city string,
	sensors []models.SensorRef,
	baselines map[int64]models.Baseline,
	progress ProgressFunc,
) (int, error) {
	var (
		mu    sync.Mutex
		total int
		done  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for _, ref := range sensors {
		ref := ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fresh, ok, err := u.fetchFresh(gctx, log, city, ref, baselines[ref.SensorID])
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			if ok && len(fresh) > 0 {
				n, err := s.InsertMeasurements(gctx, ref.SensorID, fresh)
				if err != nil {
					return fmt.Errorf("insert measurements for sensor %d: %w", ref.SensorID, err)
				}
				total += n
			}

			done++
			u.metrics.SensorProcessed(city)
			if progress != nil {
				progress(done, len(sensors))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total, nil
}

// fetchFresh fetches the remote series for one sensor and keeps the entries
// worth storing. ok is false when the fetch failed and the sensor is skipped.
// A fetch cut short by ctx is not a remote failure and returns ctx's error.
func (u *Updater) fetchFresh(ctx context.Context, log *zap.Logger, city string, ref models.SensorRef, base models.Baseline) ([]models.MeasurementEntry, bool, error) {
	entries, err := u.source.Measurements(ctx, ref.SensorID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		u.metrics.FetchFailed(city)
		log.Warn("skipping sensor after fetch failure",
			zap.Int64("sensor_id", ref.SensorID),
			zap.String("param", ref.ParamName),
			zap.Error(err),
		)
		return nil, false, nil
	}

	fresh := FilterNew(entries, base)
	log.Debug("sensor fetched",
		zap.Int64("sensor_id", ref.SensorID),
		zap.Int("received", len(entries)),
		zap.Int("new", len(fresh)),
	)
	return fresh, true, nil
}

// FilterNew keeps entries with a value whose timestamp is strictly after the
// baseline, preserving their order.
func FilterNew(entries []models.MeasurementEntry, base models.Baseline) []models.MeasurementEntry {
	out := make([]models.MeasurementEntry, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil || !base.Accepts(e.Timestamp) {
			continue
		}
		out = append(out, e)
	}
	return out
}
