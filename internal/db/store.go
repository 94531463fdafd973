package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zerotwo/gios-airsync/internal/models"
)

// DB is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store wraps database access helpers.
type Store struct {
	db   DB
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{db: pool, pool: pool}, nil
}

// NewWithDB creates a Store over an existing connection, pool or transaction.
// The caller keeps ownership of db.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InTx runs fn against a Store bound to a new transaction. The transaction is
// committed once if fn returns nil and rolled back on any other exit,
// including a panic inside fn. Nested calls use savepoints.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

const stationsInCitySQL = `
    SELECT id
    FROM airq.stations
    WHERE LOWER(city) = LOWER($1)
    ORDER BY id
`

// StationsInCity returns the ids of stations whose city matches
// case-insensitively. An unknown city yields an empty slice.
func (s *Store) StationsInCity(ctx context.Context, city string) ([]int64, error) {
	rows, err := s.db.Query(ctx, stationsInCitySQL, strings.TrimSpace(city))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const sensorsForStationsSQL = `
    SELECT id, param_name, station_id
    FROM airq.sensors
    WHERE station_id = ANY($1)
    ORDER BY station_id, id
`

// SensorsForStations returns the sensors hosted by the given stations.
func (s *Store) SensorsForStations(ctx context.Context, stationIDs []int64) ([]models.SensorRef, error) {
	refs := make([]models.SensorRef, 0)
	if len(stationIDs) == 0 {
		return refs, nil
	}

	rows, err := s.db.Query(ctx, sensorsForStationsSQL, stationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ref models.SensorRef
		if err := rows.Scan(&ref.SensorID, &ref.ParamName, &ref.StationID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

const insertMeasurementSQL = `INSERT INTO airq.measurements (sensor_id, value, date_time) VALUES ($1, $2, $3)`

// InsertMeasurement appends a single reading. No uniqueness is enforced here;
// callers filter against the sensor baseline first.
func (s *Store) InsertMeasurement(ctx context.Context, sensorID int64, ts time.Time, value float64) error {
	_, err := s.db.Exec(ctx, insertMeasurementSQL, sensorID, value, ts)
	return err
}

// InsertMeasurements appends the non-null entries for a sensor in the given
// order and returns how many rows were written.
func (s *Store) InsertMeasurements(ctx context.Context, sensorID int64, entries []models.MeasurementEntry) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		if e.Value == nil {
			continue
		}
		batch.Queue(insertMeasurementSQL, sensorID, *e.Value, e.Timestamp)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	res := s.db.SendBatch(ctx, batch)
	defer res.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := res.Exec(); err != nil {
			return i, err
		}
	}
	return batch.Len(), nil
}

const listStationsSQL = `
    SELECT id, station_name, city, commune, province, latitude, longitude
    FROM airq.stations
`

// ListStations returns stored stations, optionally restricted to a city.
func (s *Store) ListStations(ctx context.Context, city string) ([]models.Station, error) {
	sql := listStationsSQL
	args := []any{}
	if city = strings.TrimSpace(city); city != "" {
		sql += " WHERE LOWER(city) = LOWER($1)"
		args = append(args, city)
	}
	sql += " ORDER BY id"

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(
			&st.ID,
			&st.Name,
			&st.City,
			&st.Commune,
			&st.Province,
			&st.Latitude,
			&st.Longitude,
		); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

const listSensorsSQL = `
    SELECT id, station_id, param_code, param_name
    FROM airq.sensors
    WHERE station_id = $1
    ORDER BY id
`

// ListSensors returns the sensors of one station.
func (s *Store) ListSensors(ctx context.Context, stationID int64) ([]models.Sensor, error) {
	rows, err := s.db.Query(ctx, listSensorsSQL, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sensors := make([]models.Sensor, 0)
	for rows.Next() {
		var sn models.Sensor
		if err := rows.Scan(&sn.ID, &sn.StationID, &sn.ParamCode, &sn.ParamName); err != nil {
			return nil, err
		}
		sensors = append(sensors, sn)
	}
	return sensors, rows.Err()
}

// MeasurementQuery holds filters for retrieving measurements.
type MeasurementQuery struct {
	SensorID int64
	Limit    int
	Since    *time.Time
	Until    *time.Time
}

const measurementsBase = `
    SELECT id, sensor_id, value, date_time
    FROM airq.measurements
    WHERE sensor_id = $1
`

// FetchMeasurements returns measurements for a sensor ordered by timestamp.
func (s *Store) FetchMeasurements(ctx context.Context, q MeasurementQuery) ([]models.Measurement, error) {
	args := []any{q.SensorID}
	clause := ""
	argPos := 2
	if q.Since != nil {
		clause += " AND date_time >= $" + strconv.Itoa(argPos)
		args = append(args, *q.Since)
		argPos++
	}
	if q.Until != nil {
		clause += " AND date_time <= $" + strconv.Itoa(argPos)
		args = append(args, *q.Until)
		argPos++
	}
	order := " ORDER BY date_time, id"
	limit := ""
	if q.Limit > 0 {
		limit = " LIMIT $" + strconv.Itoa(argPos)
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, measurementsBase+clause+order+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := make([]models.Measurement, 0)
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.SensorID, &m.Value, &m.Timestamp); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}
