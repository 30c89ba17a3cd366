// Package metrics holds the Prometheus counters of the verbatim pipeline.
//
// The CLI runs once and exits, so nothing is scraped: when a metrics file is
// configured the registry is written in the textfile collector format at the
// end of the run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/verbatim/core"
)

const namespace = "verbatim"

// Metrics groups the pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	extracted     *prometheus.CounterVec
	skipped       prometheus.Counter
	indexedDocs   prometheus.Gauge
	indexedTerms  prometheus.Gauge
	scored        prometheus.Gauge
	scorePages    prometheus.Counter
	reportGroups  prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	stageRuns     *prometheus.CounterVec
}

// New creates the pipeline metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		extracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_records_total",
			Help:      "Verbatims written to the store, by provenance",
		}, []string{"type"}),

		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Source rows rejected by eligibility or normalization",
		}),

		indexedDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the last built index",
		}),

		indexedTerms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_terms",
			Help:      "Distinct field terms in the last built index",
		}),

		scored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scored_documents",
			Help:      "Documents matched by the last scoring pass",
		}),

		scorePages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_pages_total",
			Help:      "Result pages consumed while scoring",
		}),

		reportGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_groups",
			Help:      "Groups in the last rendered report",
		}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),

		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Pipeline stage runs by outcome",
		}, []string{"stage", "status"}),
	}

	m.registry.MustRegister(
		m.extracted, m.skipped,
		m.indexedDocs, m.indexedTerms,
		m.scored, m.scorePages,
		m.reportGroups,
		m.stageDuration, m.stageRuns,
	)
	return m
}

// Registry returns the registry holding the pipeline metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordExtracted adds n verbatims of provenance p.
func (m *Metrics) RecordExtracted(p core.Provenance, n int) {
	if m == nil {
		return
	}
	m.extracted.WithLabelValues(string(p)).Add(float64(n))
}

// RecordSkipped adds n rejected source rows.
func (m *Metrics) RecordSkipped(n int) {
	if m == nil {
		return
	}
	m.skipped.Add(float64(n))
}

// RecordIndex sets the size of the last built index.
func (m *Metrics) RecordIndex(documents, terms int) {
	if m == nil {
		return
	}
	m.indexedDocs.Set(float64(documents))
	m.indexedTerms.Set(float64(terms))
}

// RecordScore sets the outcome of the last scoring pass.
func (m *Metrics) RecordScore(matched, pages int) {
	if m == nil {
		return
	}
	m.scored.Set(float64(matched))
	m.scorePages.Add(float64(pages))
}

// RecordReport sets the number of groups in the last report.
func (m *Metrics) RecordReport(groups int) {
	if m == nil {
		return
	}
	m.reportGroups.Set(float64(groups))
}

// ObserveStage records the duration and outcome of a stage run.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	m.stageRuns.WithLabelValues(stage, status).Inc()
}

// WriteTextfile writes every metric to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
