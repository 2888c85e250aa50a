// Package metrics exposes playout engine statistics to Prometheus.
//
// NewCollector wraps any source of neteq.Statistics as a
// prometheus.Collector. Values are read from a fresh snapshot on every
// scrape, so the collector adds no work to the audio path:
//
//	c := metrics.NewCollector(engine)
//	prometheus.MustRegister(c)
//	http.Handle("/metrics", promhttp.Handler())
package metrics
