// Package metrics holds the ambient Prometheus collectors exposed on
// /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector this service registers.
type Metrics struct {
	ReindexDuration prometheus.Histogram
	ReindexDocs     prometheus.Counter
	ReindexFailures prometheus.Counter
	LiveVersions    prometheus.Gauge
	QueryDuration   *prometheus.HistogramVec
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReindexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_reindex_duration_seconds",
			Help:    "Duration of a full watcher reindex tick.",
			Buckets: prometheus.DefBuckets,
		}),
		ReindexDocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_reindex_documents_total",
			Help: "Documents added across all reindex ticks.",
		}),
		ReindexFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_reindex_failures_total",
			Help: "Reindex ticks that failed and left the live list unchanged.",
		}),
		LiveVersions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_live_versions",
			Help: "Number of versions currently live and queryable.",
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_query_duration_seconds",
			Help:    "Duration of a /files query, by command.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(m.ReindexDuration, m.ReindexDocs, m.ReindexFailures, m.LiveVersions, m.QueryDuration)
	return m
}

// ObserveQuery records how long one /files command took to serve.
func (m *Metrics) ObserveQuery(command string, start time.Time) {
	m.QueryDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
