package db

import (
	"context"
	"time"

	"github.com/zerotwo/gios-airsync/internal/models"
)

const latestTimestampsSQL = `
    SELECT s.id, MAX(m.date_time)
    FROM airq.sensors s
    LEFT JOIN airq.measurements m ON m.sensor_id = s.id
    WHERE s.station_id = ANY($1)
    GROUP BY s.id
`

// LatestTimestamps returns the newest stored timestamp for every sensor of the
// given stations. Sensors without measurements are present with HasData false.
func (s *Store) LatestTimestamps(ctx context.Context, stationIDs []int64) (map[int64]models.Baseline, error) {
	result := make(map[int64]models.Baseline)
	if len(stationIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.Query(ctx, latestTimestampsSQL, stationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sensorID int64
		var latest *time.Time
		if err := rows.Scan(&sensorID, &latest); err != nil {
			return nil, err
		}
		if latest == nil {
			result[sensorID] = models.Baseline{}
			continue
		}
		result[sensorID] = models.Baseline{Latest: *latest, HasData: true}
	}

	return result, rows.Err()
}
