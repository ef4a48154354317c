package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HitMissCounter is a cache keeping its own hit and miss totals.
type HitMissCounter interface {
	HitCount() int64
	MissCount() int64
}

func SetupPrometheus(extraCollectors ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()

	// Add Go module build info, runtime metrics and process collectors.
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promRegistry.MustRegister(extraCollectors...)

	return promRegistry
}

// RegisterCacheCounters exposes the cache totals as <name>_hits and <name>_misses counters,
// read on every scrape.
func RegisterCacheCounters(reg prometheus.Registerer, namespace, subsystem, name string, cache HitMissCounter) {
	factory := promauto.With(reg)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name + "_hits",
		Help:      "The total number of cache hits",
	}, func() float64 {
		return float64(cache.HitCount())
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name + "_misses",
		Help:      "The total number of cache misses",
	}, func() float64 {
		return float64(cache.MissCount())
	})
}
