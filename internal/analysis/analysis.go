package analysis

import (
	"errors"
	"time"

	"github.com/zerotwo/gios-airsync/internal/models"
)

// ErrNoData is returned when there is nothing to summarise.
var ErrNoData = errors.New("no measurements to analyse")

// Trend directions.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
)

// Summary describes a measurement series.
type Summary struct {
	Count int       `json:"count"`
	Min   float64   `json:"min"`
	MinAt time.Time `json:"min_at"`
	Max   float64   `json:"max"`
	MaxAt time.Time `json:"max_at"`
	Mean  float64   `json:"mean"`
	Trend string    `json:"trend"`
}

// Summarize computes min, max, mean and trend over measurements ordered by
// timestamp. MinAt and MaxAt are the first timestamps reaching the extremes.
// The trend is rising when the last value exceeds the first.
func Summarize(ms []models.Measurement) (Summary, error) {
	if len(ms) == 0 {
		return Summary{}, ErrNoData
	}

	s := Summary{
		Count: len(ms),
		Min:   ms[0].Value,
		MinAt: ms[0].Timestamp,
		Max:   ms[0].Value,
		MaxAt: ms[0].Timestamp,
	}

	var sum float64
	for _, m := range ms {
		sum += m.Value
		if m.Value < s.Min {
			s.Min, s.MinAt = m.Value, m.Timestamp
		}
		if m.Value > s.Max {
			s.Max, s.MaxAt = m.Value, m.Timestamp
		}
	}
	s.Mean = sum / float64(len(ms))

	s.Trend = TrendFalling
	if ms[len(ms)-1].Value > ms[0].Value {
		s.Trend = TrendRising
	}
	return s, nil
}
