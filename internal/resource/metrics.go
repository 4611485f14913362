package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results recorded by Metrics.
const (
	resultHit          = "hit"
	resultLoaded       = "loaded"
	resultFailed       = "failed"
	resultDefault      = "default"
	resultUnregistered = "unregistered"
	resultClosed       = "closed"
)

// Metrics records registry activity as Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	lookups      *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	cached       *prometheus.GaugeVec
	defaults     *prometheus.CounterVec
}

// NewMetrics creates the registry collectors and registers them with reg.
// A nil reg leaves them unregistered. Like promauto, it panics if the
// collectors are already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grae_resource_lookups_total",
				Help: "Total number of resource lookups by type and result",
			},
			[]string{"type", "result"},
		),
		loadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grae_resource_load_duration_seconds",
				Help:    "Duration of resource construction in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"type"},
		),
		cached: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "grae_resource_cached",
				Help: "Number of resources currently cached by type",
			},
			[]string{"type"},
		),
		defaults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grae_resource_defaults_built_total",
				Help: "Total number of default instances constructed by type",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) lookup(typ, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) loaded(typ string, d time.Duration, cached int) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(typ).Observe(d.Seconds())
	m.cached.WithLabelValues(typ).Set(float64(cached))
}

func (m *Metrics) defaultBuilt(typ string) {
	if m == nil {
		return
	}
	m.defaults.WithLabelValues(typ).Inc()
}

func (m *Metrics) released(typ string) {
	if m == nil {
		return
	}
	m.cached.WithLabelValues(typ).Set(0)
}
