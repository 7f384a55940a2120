// Package metrics exposes Prometheus instrumentation for the
// detection pipeline. All methods are nil-receiver safe so wiring can
// disable metrics without sprinkling conditionals through callers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors.
type Metrics struct {
	checksTotal       *prometheus.CounterVec
	checkDuration     prometheus.Histogram
	embeddingDuration prometheus.Histogram
	searchDuration    prometheus.Histogram
	documentsIndexed  prometheus.Counter
	documentsDeleted  prometheus.Counter
	corpusDocuments   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veriscan",
			Name:      "checks_total",
			Help:      "Plagiarism checks completed, by severity.",
		}, []string{"severity"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veriscan",
			Name:      "check_duration_seconds",
			Help:      "End to end plagiarism check latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		embeddingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veriscan",
			Name:      "embedding_duration_seconds",
			Help:      "Batched embedding call latency per check.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veriscan",
			Name:      "search_duration_seconds",
			Help:      "Vector search phase latency per check.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		documentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veriscan",
			Name:      "documents_indexed_total",
			Help:      "Documents added to the corpus.",
		}),
		documentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "veriscan",
			Name:      "documents_deleted_total",
			Help:      "Documents removed from the corpus.",
		}),
		corpusDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "veriscan",
			Name:      "corpus_documents",
			Help:      "Documents currently in the corpus.",
		}),
	}
	reg.MustRegister(
		m.checksTotal,
		m.checkDuration,
		m.embeddingDuration,
		m.searchDuration,
		m.documentsIndexed,
		m.documentsDeleted,
		m.corpusDocuments,
	)
	return m
}

// ObserveCheck records one completed check.
func (m *Metrics) ObserveCheck(severity string, total, embed, search time.Duration) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(severity).Inc()
	m.checkDuration.Observe(total.Seconds())
	m.embeddingDuration.Observe(embed.Seconds())
	m.searchDuration.Observe(search.Seconds())
}

// DocumentIndexed records a corpus insert or replace.
func (m *Metrics) DocumentIndexed() {
	if m == nil {
		return
	}
	m.documentsIndexed.Inc()
}

// DocumentDeleted records a corpus delete.
func (m *Metrics) DocumentDeleted() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

// SetCorpusSize records the current corpus document count.
func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusDocuments.Set(float64(n))
}
