package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zerotwo/gios-airsync/internal/gios"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultRunTimeout     = 15 * time.Minute
	defaultPort           = 8080
	defaultLimit          = 200
	defaultWorkers        = 1
)

// Config holds runtime configuration for the watcher and the API.
type Config struct {
	DatabaseURL    string
	BaseURL        string
	RequestTimeout time.Duration

	Cities     []string
	Interval   time.Duration
	RunTimeout time.Duration
	Workers    int
	Bootstrap  bool
	DryRun     bool
	// DurationBuckets overrides the run duration histogram buckets (seconds).
	DurationBuckets []float64

	LogLevel    string
	LogEncoding string

	Port         int
	BearerToken  string
	DefaultLimit int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		BaseURL:        gios.DefaultBaseURL,
		RequestTimeout: defaultRequestTimeout,
		RunTimeout:     defaultRunTimeout,
		Workers:        defaultWorkers,
		LogLevel:       "info",
		LogEncoding:    "json",
		Port:           defaultPort,
		DefaultLimit:   defaultLimit,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if v := strings.TrimSpace(os.Getenv("GIOS_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("GIOS_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid GIOS_REQUEST_TIMEOUT: %q", v)
		}
		cfg.RequestTimeout = d
	}

	cfg.Cities = splitList(os.Getenv("SYNC_CITIES"))

	if v := strings.TrimSpace(os.Getenv("SYNC_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid SYNC_INTERVAL: %q", v)
		}
		cfg.Interval = d
	}

	if v := strings.TrimSpace(os.Getenv("SYNC_RUN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid SYNC_RUN_TIMEOUT: %q", v)
		}
		cfg.RunTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("SYNC_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid SYNC_WORKERS: %q", v)
		}
		cfg.Workers = n
	}

	if v := strings.TrimSpace(os.Getenv("SYNC_DURATION_BUCKETS")); v != "" {
		buckets, err := parseBuckets(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SYNC_DURATION_BUCKETS: %q", v)
		}
		cfg.DurationBuckets = buckets
	}

	cfg.Bootstrap = parseBool(os.Getenv("SYNC_BOOTSTRAP"))
	cfg.DryRun = parseBool(os.Getenv("DRY_RUN"))

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_ENCODING")); v != "" {
		cfg.LogEncoding = v
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if limitStr := os.Getenv("API_DEFAULT_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			cfg.DefaultLimit = limit
		} else {
			return cfg, fmt.Errorf("invalid API_DEFAULT_LIMIT: %s", limitStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBuckets reads a comma separated, strictly increasing list of positive
// seconds.
func parseBuckets(v string) ([]float64, error) {
	parts := splitList(v)
	if len(parts) == 0 {
		return nil, errors.New("no buckets")
	}
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		b, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		if b <= 0 || (len(out) > 0 && b <= out[len(out)-1]) {
			return nil, fmt.Errorf("bucket %v out of order", b)
		}
		out = append(out, b)
	}
	return out, nil
}
