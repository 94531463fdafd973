package updater

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zerotwo/gios-airsync/internal/db"
	"github.com/zerotwo/gios-airsync/internal/models"
)

// CatalogSource lists the remote stations and their sensors.
type CatalogSource interface {
	Stations(ctx context.Context) ([]models.Station, error)
	Sensors(ctx context.Context, stationID int64) ([]models.Sensor, error)
}

// CatalogStore persists stations and sensors, ignoring ones already stored.
type CatalogStore interface {
	UpsertStation(ctx context.Context, st models.Station) error
	UpsertSensors(ctx context.Context, sensors []models.Sensor) error
}

// CatalogResult summarises a catalog sync.
type CatalogResult struct {
	Stations       int `json:"stations"`
	Sensors        int `json:"sensors"`
	FailedStations int `json:"failed_stations"`
}

// Catalog registers remote stations and sensors locally so that UpdateCity has
// something to scope on.
type Catalog struct {
	source CatalogSource
	inTx   func(ctx context.Context, fn func(CatalogStore) error) error
	log    *zap.Logger
}

// NewCatalog creates a Catalog writing through st.
func NewCatalog(st *db.Store, source CatalogSource, log *zap.Logger) *Catalog {
	return newCatalog(func(ctx context.Context, fn func(CatalogStore) error) error {
		return st.InTx(ctx, func(tx *db.Store) error { return fn(tx) })
	}, source, log)
}

func newCatalog(inTx func(context.Context, func(CatalogStore) error) error, source CatalogSource, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{source: source, inTx: inTx, log: log}
}

// Sync fetches every remote station, optionally restricted to city, and stores
// each station with its sensors. A station whose sensor list cannot be fetched
// is still stored and counted in FailedStations.
func (c *Catalog) Sync(ctx context.Context, city string) (CatalogResult, error) {
	var res CatalogResult

	stations, err := c.source.Stations(ctx)
	if err != nil {
		return res, err
	}

	scope := NormalizeCity(city)
	err = c.inTx(ctx, func(s CatalogStore) error {
		for _, st := range stations {
			if scope != "" && !strings.EqualFold(strings.TrimSpace(st.City), scope) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := s.UpsertStation(ctx, st); err != nil {
				return fmt.Errorf("store station %d: %w", st.ID, err)
			}
			res.Stations++

			sensors, err := c.source.Sensors(ctx, st.ID)
			if err != nil {
				res.FailedStations++
				c.log.Warn("skipping sensors for station", zap.Int64("station_id", st.ID), zap.Error(err))
				continue
			}
			if err := s.UpsertSensors(ctx, sensors); err != nil {
				return fmt.Errorf("store sensors for station %d: %w", st.ID, err)
			}
			res.Sensors += len(sensors)
		}
		return nil
	})
	if err != nil {
		return CatalogResult{}, err
	}

	c.log.Info("catalog synced",
		zap.String("city", scope),
		zap.Int("stations", res.Stations),
		zap.Int("sensors", res.Sensors),
		zap.Int("failed_stations", res.FailedStations),
	)
	return res, nil
}
