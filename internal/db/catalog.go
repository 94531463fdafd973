package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/zerotwo/gios-airsync/internal/models"
)

const upsertStationSQL = `INSERT INTO airq.stations (id, station_name, city, commune, province, latitude, longitude)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING`

const upsertSensorSQL = `INSERT INTO airq.sensors (id, station_id, param_code, param_name)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO NOTHING`

// UpsertStation stores a station the first time it is seen. Existing rows are
// left untouched.
func (s *Store) UpsertStation(ctx context.Context, st models.Station) error {
	_, err := s.db.Exec(ctx, upsertStationSQL, st.ID, st.Name, st.City, st.Commune, st.Province, st.Latitude, st.Longitude)
	return err
}

// UpsertSensors stores a batch of sensors, skipping ones already known.
func (s *Store) UpsertSensors(ctx context.Context, sensors []models.Sensor) error {
	if len(sensors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sn := range sensors {
		batch.Queue(upsertSensorSQL, sn.ID, sn.StationID, sn.ParamCode, sn.ParamName)
	}

	res := s.db.SendBatch(ctx, batch)
	defer res.Close()

	for range sensors {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}
