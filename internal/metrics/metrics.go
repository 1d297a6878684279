// Package metrics registers the engine's Prometheus instrumentation:
// collectors constructed once by New and wired into an http.Handler
// served on an optional /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters and gauges exposed by a running engine.
type Metrics struct {
	BackupSetsTotal prometheus.Counter
	QueueDepthGauge *prometheus.GaugeVec
	DedupHitsTotal  prometheus.Counter
	PassDuration    prometheus.Histogram
}

// New constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for isolated tests, or
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BackupSetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "haumaru_backup_sets_total",
			Help: "Total number of backup sets opened.",
		}),
		QueueDepthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "haumaru_queue_depth",
			Help: "Current length + in-progress count of a pipeline queue.",
		}, []string{"stage"}),
		DedupHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "haumaru_blob_dedup_hits_total",
			Help: "Total number of uploads skipped because the blob already existed.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "haumaru_pass_duration_seconds",
			Help: "Duration of a single backup pass (scan/watch-drain through queue drain).",
		}),
	}
	reg.MustRegister(m.BackupSetsTotal, m.QueueDepthGauge, m.DedupHitsTotal, m.PassDuration)
	return m
}

// DedupSkipped implements pipeline.Metrics.
func (m *Metrics) DedupSkipped() { m.DedupHitsTotal.Inc() }

// BackupSetOpened implements engine.Metrics.
func (m *Metrics) BackupSetOpened() { m.BackupSetsTotal.Inc() }

// PassObserved implements engine.Metrics.
func (m *Metrics) PassObserved(seconds float64) { m.PassDuration.Observe(seconds) }

// QueueDepth implements pipeline.Metrics.
func (m *Metrics) QueueDepth(stage string, n int) {
	m.QueueDepthGauge.WithLabelValues(stage).Set(float64(n))
}

// Handler returns an http.Handler serving the metrics in the Prometheus
// text exposition format, suitable for mounting at /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
