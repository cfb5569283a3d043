package objectcache

import "github.com/prometheus/client_golang/prometheus"

// cacheMetrics holds Prometheus metrics for cache operations
type cacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	invalidations prometheus.Counter
	resets        prometheus.Counter
	evictions     prometheus.Counter
	size          prometheus.Gauge
}

func newCacheMetrics(reg prometheus.Registerer, name string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	counter := func(metric, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "objectdb",
			Subsystem:   "cache",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &cacheMetrics{
		hits:          counter("hits_total", "Total number of cache hits"),
		misses:        counter("misses_total", "Total number of cache misses"),
		invalidations: counter("invalidations_total", "Total number of invalidated keys"),
		resets:        counter("resets_total", "Total number of full cache resets"),
		evictions:     counter("evictions_total", "Total number of LRU evictions"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "objectdb",
			Subsystem:   "cache",
			Name:        "size",
			Help:        "Current number of cached keys",
			ConstLabels: labels,
		}),
	}

	for _, c := range []prometheus.Collector{m.hits, m.misses, m.invalidations, m.resets, m.evictions, m.size} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
