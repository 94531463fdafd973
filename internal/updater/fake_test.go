package updater

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/zerotwo/gios-airsync/internal/models"
)

type storedMeasurement struct {
	sensorID int64
	ts       time.Time
	value    float64
}

// memStore is an in-memory Store and Transactor. Rolled back scopes restore
// the measurement table to its state at InTx entry.
type memStore struct {
	mu           sync.Mutex
	stations     []models.Station
	sensors      []models.Sensor
	measurements []storedMeasurement

	insertErr error
	commits   int
	rollbacks int
	queries   []string
	cities    []string
}

func (m *memStore) addStation(id int64, city string) {
	m.stations = append(m.stations, models.Station{ID: id, City: city})
}

func (m *memStore) addSensor(id, stationID int64, param string) {
	m.sensors = append(m.sensors, models.Sensor{ID: id, StationID: stationID, ParamName: param})
}

func (m *memStore) addMeasurement(sensorID int64, ts string, value float64) {
	m.measurements = append(m.measurements, storedMeasurement{sensorID: sensorID, ts: mustTS(ts), value: value})
}

func (m *memStore) count(sensorID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sm := range m.measurements {
		if sm.sensorID == sensorID {
			n++
		}
	}
	return n
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	snapshot := append([]storedMeasurement(nil), m.measurements...)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.measurements = snapshot
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
	return nil
}

func (m *memStore) StationsInCity(ctx context.Context, city string) ([]int64, error) {
	m.queries = append(m.queries, "stations")
	m.cities = append(m.cities, city)
	ids := make([]int64, 0)
	for _, st := range m.stations {
		if strings.EqualFold(st.City, city) {
			ids = append(ids, st.ID)
		}
	}
	return ids, nil
}

func (m *memStore) SensorsForStations(ctx context.Context, stationIDs []int64) ([]models.SensorRef, error) {
	m.queries = append(m.queries, "sensors")
	refs := make([]models.SensorRef, 0)
	for _, sn := range m.sensors {
		for _, id := range stationIDs {
			if sn.StationID == id {
				refs = append(refs, models.SensorRef{SensorID: sn.ID, ParamName: sn.ParamName, StationID: sn.StationID})
			}
		}
	}
	return refs, nil
}

func (m *memStore) LatestTimestamps(ctx context.Context, stationIDs []int64) (map[int64]models.Baseline, error) {
	m.queries = append(m.queries, "baselines")
	refs, _ := m.SensorsForStations(ctx, stationIDs)
	out := make(map[int64]models.Baseline, len(refs))
	for _, ref := range refs {
		var b models.Baseline
		for _, sm := range m.measurements {
			if sm.sensorID == ref.SensorID && (!b.HasData || sm.ts.After(b.Latest)) {
				b = models.Baseline{Latest: sm.ts, HasData: true}
			}
		}
		out[ref.SensorID] = b
	}
	return out, nil
}

func (m *memStore) InsertMeasurements(ctx context.Context, sensorID int64, entries []models.MeasurementEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	n := 0
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		m.measurements = append(m.measurements, storedMeasurement{sensorID: sensorID, ts: e.Timestamp, value: *e.Value})
		n++
	}
	return n, nil
}

// commitFailingTx runs fn against the in-memory store and then fails the
// commit, rolling back everything fn wrote.
type commitFailingTx struct {
	store *memStore
	err   error
}

func (c commitFailingTx) InTx(ctx context.Context, fn func(Store) error) error {
	return c.store.InTx(ctx, func(s Store) error {
		if err := fn(s); err != nil {
			return err
		}
		return c.err
	})
}

// fakeSource serves canned series per sensor. Sensors in hang block until the
// request context is done.
type fakeSource struct {
	mu     sync.Mutex
	series map[int64][]models.MeasurementEntry
	fail   map[int64]error
	hang   map[int64]bool
	calls  []int64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series: map[int64][]models.MeasurementEntry{},
		fail:   map[int64]error{},
		hang:   map[int64]bool{},
	}
}

func (f *fakeSource) Measurements(ctx context.Context, sensorID int64) ([]models.MeasurementEntry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sensorID)
	hang := f.hang[sensorID]
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[sensorID]; err != nil {
		return nil, err
	}
	return f.series[sensorID], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errRemote = errors.New("remote unavailable")

func mustTS(s string) time.Time {
	ts, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func entry(ts string, v float64) models.MeasurementEntry {
	return models.MeasurementEntry{Timestamp: mustTS(ts), Value: &v}
}

func nullEntry(ts string) models.MeasurementEntry {
	return models.MeasurementEntry{Timestamp: mustTS(ts)}
}
