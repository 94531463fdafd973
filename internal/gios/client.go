package gios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/zerotwo/gios-airsync/internal/models"
)

// DefaultBaseURL is the public GIOS air-quality REST endpoint.
const DefaultBaseURL = "https://api.gios.gov.pl/pjp-api/rest"

var (
	// ErrUnexpectedStatus is returned for any non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrBadTimestamp is returned for measurement dates in an unknown format.
	ErrBadTimestamp = errors.New("bad timestamp")
)

// Client talks to the GIOS REST API. Every call goes through a circuit breaker
// so a dead upstream fails fast instead of costing a timeout per sensor.
type Client struct {
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBreakerSettings replaces the default breaker settings.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.circuit = gobreaker.NewCircuitBreaker(st)
	}
}

// NewClient creates a client for baseURL. A nil httpClient uses a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     zap.NewNop(),
	}
	c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gios",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stations returns every station known to the remote source.
func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var payload []stationPayload
	if err := c.getJSON(ctx, "/station/findAll", &payload); err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}

	stations := make([]models.Station, 0, len(payload))
	for _, p := range payload {
		stations = append(stations, p.toModel())
	}
	c.log.Debug("fetched stations", zap.Int("count", len(stations)))
	return stations, nil
}

// Sensors returns the sensors hosted by a station.
func (c *Client) Sensors(ctx context.Context, stationID int64) ([]models.Sensor, error) {
	var payload []sensorPayload
	path := "/station/sensors/" + strconv.FormatInt(stationID, 10)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch sensors for station %d: %w", stationID, err)
	}

	sensors := make([]models.Sensor, 0, len(payload))
	for _, p := range payload {
		sensors = append(sensors, p.toModel(stationID))
	}
	c.log.Debug("fetched sensors", zap.Int64("station_id", stationID), zap.Int("count", len(sensors)))
	return sensors, nil
}

// Measurements returns the current measurement series for a sensor in the
// order the API sent it. Null values are kept; entries with an unparseable
// date are dropped and logged.
func (c *Client) Measurements(ctx context.Context, sensorID int64) ([]models.MeasurementEntry, error) {
	var payload dataPayload
	path := "/data/getData/" + strconv.FormatInt(sensorID, 10)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch measurements for sensor %d: %w", sensorID, err)
	}

	entries := make([]models.MeasurementEntry, 0, len(payload.Values))
	for _, v := range payload.Values {
		ts, err := ParseTimestamp(v.Date)
		if err != nil {
			c.log.Warn("skipping measurement", zap.Int64("sensor_id", sensorID), zap.Error(err))
			continue
		}
		entries = append(entries, models.MeasurementEntry{Timestamp: ts, Value: v.Value})
	}
	c.log.Debug("fetched measurements", zap.Int64("sensor_id", sensorID), zap.Int("count", len(entries)))
	return entries, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	_, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w %s", ErrUnexpectedStatus, resp.Status)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}
