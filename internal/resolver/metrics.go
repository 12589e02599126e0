package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes recorded per strategy.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

type Metrics struct {
	ResolutionsTotal  *prometheus.CounterVec
	CacheEventsTotal  *prometheus.CounterVec
	OutOfRangeTotal   prometheus.Counter
	ResolutionTime    prometheus.Histogram
	ResolvedBundles   prometheus.Gauge
	ConfigEpochsTotal prometheus.Counter
}

// NewMetrics creates the resolver metrics and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nls_resolutions_total",
				Help: "Total number of bundle resolution attempts",
			},
			[]string{"strategy", "outcome"},
		),
		CacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nls_cache_events_total",
				Help: "Total number of on-disk bundle cache events",
			},
			[]string{"event"},
		),
		OutOfRangeTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nls_out_of_range_total",
				Help: "Total number of localize calls with an out of range index",
			},
		),
		ResolutionTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nls_resolution_duration_seconds",
				Help:    "Time spent building lookup functions",
				Buckets: prometheus.DefBuckets,
			},
		),
		ResolvedBundles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "nls_resolved_bundles",
				Help: "Number of bundle directories resolved in the current epoch",
			},
		),
		ConfigEpochsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "nls_config_epochs_total",
				Help: "Total number of configuration changes that invalidated resolutions",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			metrics.ResolutionsTotal,
			metrics.CacheEventsTotal,
			metrics.OutOfRangeTotal,
			metrics.ResolutionTime,
			metrics.ResolvedBundles,
			metrics.ConfigEpochsTotal,
		)
	}

	return metrics
}

func (m *Metrics) RecordResolution(strategy, outcome string) {
	m.ResolutionsTotal.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) RecordCacheHit() {
	m.CacheEventsTotal.WithLabelValues("hit").Inc()
}

func (m *Metrics) RecordCacheMiss() {
	m.CacheEventsTotal.WithLabelValues("miss").Inc()
}

func (m *Metrics) RecordCacheCorruption() {
	m.CacheEventsTotal.WithLabelValues("corrupted").Inc()
}

func (m *Metrics) RecordOutOfRange() {
	m.OutOfRangeTotal.Inc()
}

func (m *Metrics) RecordResolutionTime(duration time.Duration) {
	m.ResolutionTime.Observe(duration.Seconds())
}

func (m *Metrics) SetResolvedBundles(count int) {
	m.ResolvedBundles.Set(float64(count))
}

func (m *Metrics) RecordEpoch() {
	m.ConfigEpochsTotal.Inc()
}
