// Package metrics exposes Prometheus collectors for sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "airq"

// Run outcomes used as the status label.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
	StatusEmpty  = "empty"
)

// Sync holds the collectors updated by the orchestrator. A nil *Sync is valid
// and records nothing.
type Sync struct {
	runs           *prometheus.CounterVec
	inserted       *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	sensorsVisited *prometheus.CounterVec
	duration       prometheus.Histogram
	lastSuccess    *prometheus.GaugeVec
}

// Option configures New.
type Option func(*options)

type options struct {
	namespace string
	registry  prometheus.Registerer
	buckets   []float64
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithRegistry registers collectors on r instead of the default registerer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// WithBuckets sets the run duration histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// New creates and registers the sync collectors.
func New(opts ...Option) (*Sync, error) {
	o := options{
		namespace: defaultNamespace,
		registry:  prometheus.DefaultRegisterer,
		buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Sync{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by city and outcome.",
		}, []string{"city", "status"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "measurements_inserted_total",
			Help:      "Measurements written by sync runs.",
		}, []string{"city"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "fetch_failures_total",
			Help:      "Sensors skipped because the remote fetch failed.",
		}, []string{"city"}),
		sensorsVisited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "sensors_processed_total",
			Help:      "Sensors processed by sync runs.",
		}, []string{"city"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   o.buckets,
		}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per city.",
		}, []string{"city"}),
	}

	for _, c := range []prometheus.Collector{s.runs, s.inserted, s.fetchFailures, s.sensorsVisited, s.duration, s.lastSuccess} {
		if err := o.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RunFinished records the outcome of one run.
func (s *Sync) RunFinished(city, status string, inserted int, took time.Duration, now time.Time) {
	if s == nil {
		return
	}
	s.runs.WithLabelValues(city, status).Inc()
	s.duration.Observe(took.Seconds())
	if status == StatusFailed {
		return
	}
	s.inserted.WithLabelValues(city).Add(float64(inserted))
	s.lastSuccess.WithLabelValues(city).Set(float64(now.Unix()))
}

// FetchFailed counts a skipped sensor.
func (s *Sync) FetchFailed(city string) {
	if s == nil {
		return
	}
	s.fetchFailures.WithLabelValues(city).Inc()
}

// SensorProcessed counts a processed sensor.
func (s *Sync) SensorProcessed(city string) {
	if s == nil {
		return
	}
	s.sensorsVisited.WithLabelValues(city).Inc()
}
