package models

import "time"

// Station is a fixed monitoring location known to the local store.
type Station struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	City      string  `json:"city"`
	Commune   string  `json:"commune,omitempty"`
	Province  string  `json:"province,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Sensor is a single parameter channel hosted at a station.
type Sensor struct {
	ID        int64  `json:"id"`
	StationID int64  `json:"station_id"`
	ParamCode string `json:"param_code"`
	ParamName string `json:"param_name"`
}

// SensorRef is the slim sensor row used to scope a sync run.
type SensorRef struct {
	SensorID  int64
	ParamName string
	StationID int64
}

// MeasurementEntry is one reading as returned by the remote source.
type MeasurementEntry struct {
	Timestamp time.Time
	Value     *float64
}

// Measurement is a stored reading.
type Measurement struct {
	ID        int64     `json:"id"`
	SensorID  int64     `json:"sensor_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

// Baseline is the most recent stored timestamp for a sensor. HasData is false
// when nothing has been stored for the sensor yet.
type Baseline struct {
	Latest  time.Time
	HasData bool
}

// Accepts reports whether an entry with the given timestamp is strictly newer
// than the baseline. Equal timestamps are treated as already stored.
func (b Baseline) Accepts(ts time.Time) bool {
	if !b.HasData {
		return true
	}
	return ts.After(b.Latest)
}
