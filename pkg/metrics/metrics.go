// Package metrics provides Prometheus instrumentation for the dataset
// registry.
//
// Collectors are registered on an explicit prometheus.Registerer so tests and
// embedding applications can use their own registry:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistryMetrics(reg)
//	r := registry.New(l, registry.WithMetrics(m))
//
// The CLI registers on prometheus.DefaultRegisterer and serves it with
// promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "alphadata"
	subsystem = "registry"
)

// Lookup results.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Load statuses.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// RegistryMetrics holds the registry collectors.
type RegistryMetrics struct {
	Lookups        *prometheus.CounterVec
	Loads          *prometheus.CounterVec
	LoadDuration   prometheus.Histogram
	CachedDatasets prometheus.Gauge
	Evictions      prometheus.Counter
}

// NewRegistryMetrics creates and registers the registry collectors on reg.
// A nil reg leaves them unregistered.
func NewRegistryMetrics(reg prometheus.Registerer) *RegistryMetrics {
	factory := promauto.With(reg)
	return &RegistryMetrics{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lookups_total",
				Help:      "Dataset lookups by cache result",
			},
			[]string{"result"},
		),
		Loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loads_total",
				Help:      "Dataset materializations by status",
			},
			[]string{"status"},
		),
		LoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "load_duration_seconds",
				Help:      "Time spent materializing a dataset",
				Buckets: []float64{
					.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
				},
			},
		),
		CachedDatasets: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cached_datasets",
				Help:      "Datasets currently retained by the registry",
			},
		),
		Evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evictions_total",
				Help:      "Datasets released from the registry",
			},
		),
	}
}

// ObserveLookup counts a cache lookup. Safe on a nil receiver.
func (m *RegistryMetrics) ObserveLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.Lookups.WithLabelValues(ResultHit).Inc()
	} else {
		m.Lookups.WithLabelValues(ResultMiss).Inc()
	}
}

// ObserveLoad records one materialization. Safe on a nil receiver.
func (m *RegistryMetrics) ObserveLoad(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(status).Inc()
	m.LoadDuration.Observe(d.Seconds())
}

// SetCached sets the number of retained datasets. Safe on a nil receiver.
func (m *RegistryMetrics) SetCached(n int) {
	if m == nil {
		return
	}
	m.CachedDatasets.Set(float64(n))
}

// ObserveEviction counts a released dataset. Safe on a nil receiver.
func (m *RegistryMetrics) ObserveEviction() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}

// Timer measures an operation's duration.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
