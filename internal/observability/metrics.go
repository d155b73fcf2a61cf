// Package observability exposes the prometheus metrics surface for
// the tile service: cache hit/miss counters, fill latency histograms,
// in-flight job gauges, and string-pool growth, registered the same
// way this codebase family registers its own collector sets (an
// Init(registerer, enabled) gate plus package-level recording funcs).
package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Enabled() bool { return enabled.Load() }

var (
	cacheHitsTotal        *prometheus.CounterVec
	cacheMissesTotal      *prometheus.CounterVec
	cachePutTotal         *prometheus.CounterVec
	fillDurationSeconds   *prometheus.HistogramVec
	jobsInFlight          *prometheus.GaugeVec
	stringPoolSize        *prometheus.GaugeVec
	tileLayerBytesTotal   *prometheus.CounterVec
	invalidationEvictions *prometheus.CounterVec
)

// Init registers the collector set with r when enabled is true. It is
// safe to call Init(nil, false) in tests and CLI tooling that never
// wants metrics.
func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tileservice_cache_hits_total", Help: "Cache hits by tier."},
		[]string{"tier"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tileservice_cache_misses_total", Help: "Cache misses by tier."},
		[]string{"tier"},
	)
	cachePutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tileservice_cache_put_total", Help: "Cache inserts by tier and kind."},
		[]string{"tier", "kind"},
	)
	fillDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tileservice_fill_duration_seconds",
			Help:    "Duration of data source fill() calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"datasource", "outcome"},
	)
	jobsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tileservice_jobs_in_flight", Help: "Currently dispatched fill jobs by data source."},
		[]string{"datasource"},
	)
	stringPoolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tileservice_string_pool_size", Help: "Number of dynamic string pool entries by node id."},
		[]string{"node_id"},
	)
	tileLayerBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tileservice_tile_layer_bytes_total", Help: "Total serialized tile layer bytes by direction."},
		[]string{"direction"},
	)
	invalidationEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tileservice_invalidation_evictions_total", Help: "Cache evictions triggered by invalidation events."},
		[]string{"reason"},
	)

	r.MustRegister(
		cacheHitsTotal, cacheMissesTotal, cachePutTotal, fillDurationSeconds,
		jobsInFlight, stringPoolSize, tileLayerBytesTotal, invalidationEvictions,
	)
}

func CacheHit(tier string) {
	if !Enabled() {
		return
	}
	cacheHitsTotal.WithLabelValues(tier).Inc()
}

func CacheMiss(tier string) {
	if !Enabled() {
		return
	}
	cacheMissesTotal.WithLabelValues(tier).Inc()
}

func CachePut(tier, kind string) {
	if !Enabled() {
		return
	}
	cachePutTotal.WithLabelValues(tier, kind).Inc()
}

func ObserveFill(datasource, outcome string, seconds float64) {
	if !Enabled() {
		return
	}
	fillDurationSeconds.WithLabelValues(datasource, outcome).Observe(seconds)
}

func SetJobsInFlight(datasource string, n int) {
	if !Enabled() {
		return
	}
	jobsInFlight.WithLabelValues(datasource).Set(float64(n))
}

func SetStringPoolSize(nodeID string, n int) {
	if !Enabled() {
		return
	}
	stringPoolSize.WithLabelValues(nodeID).Set(float64(n))
}

func AddTileLayerBytes(direction string, n int) {
	if !Enabled() {
		return
	}
	tileLayerBytesTotal.WithLabelValues(direction).Add(float64(n))
}

func InvalidationEviction(reason string) {
	if !Enabled() {
		return
	}
	invalidationEvictions.WithLabelValues(reason).Inc()
}
