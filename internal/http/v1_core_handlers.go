package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zerotwo/gios-airsync/internal/analysis"
	"github.com/zerotwo/gios-airsync/internal/db"
)

// handleV1ListStations returns stored stations, optionally filtered by city
// GET /api/v1/core/stations?city=Poznań
func (s *Server) handleV1ListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stations, err := s.store.ListStations(ctx, c.Query("city"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{"count": len(stations)},
	})
}

// handleV1ListSensors returns the sensors of a station
// GET /api/v1/core/stations/:id/sensors
func (s *Server) handleV1ListSensors(c *gin.Context) {
	stationID, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sensors, err := s.store.ListSensors(ctx, stationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sensors,
		"meta": gin.H{"station_id": stationID, "count": len(sensors)},
	})
}

// handleV1Measurements returns stored measurements for a sensor
// GET /api/v1/core/sensors/:id/measurements?start=...&end=...&last_n=100
func (s *Server) handleV1Measurements(c *gin.Context) {
	sensorID, ok := parseID(c)
	if !ok {
		return
	}

	since, until, ok := parseRange(c)
	if !ok {
		return
	}

	limit := s.cfg.DefaultLimit
	if limitStr := c.Query("last_n"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_n"})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	measurements, err := s.store.FetchMeasurements(ctx, db.MeasurementQuery{
		SensorID: sensorID,
		Limit:    limit,
		Since:    since,
		Until:    until,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": measurements,
		"meta": gin.H{"sensor_id": sensorID, "count": len(measurements)},
	})
}

// handleV1Summary returns min/max/mean/trend over a sensor's measurements
// GET /api/v1/core/sensors/:id/summary?start=...&end=...
func (s *Server) handleV1Summary(c *gin.Context) {
	sensorID, ok := parseID(c)
	if !ok {
		return
	}

	since, until, ok := parseRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	measurements, err := s.store.FetchMeasurements(ctx, db.MeasurementQuery{
		SensorID: sensorID,
		Since:    since,
		Until:    until,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summary, err := analysis.Summarize(measurements)
	if errors.Is(err, analysis.ErrNoData) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
		"meta": gin.H{"sensor_id": sensorID},
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// timeLayouts are accepted for start/end. Stored timestamps are naive, so
// zoned inputs are compared on their wall clock.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseRange(c *gin.Context) (since, until *time.Time, ok bool) {
	if startStr := c.Query("start"); startStr != "" {
		t, err := parseTime(startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start timestamp"})
			return nil, nil, false
		}
		since = &t
	}
	if endStr := c.Query("end"); endStr != "" {
		t, err := parseTime(endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end timestamp"})
			return nil, nil, false
		}
		until = &t
	}
	return since, until, true
}
