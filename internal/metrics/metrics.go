// Package metrics exposes Prometheus collectors for the regwatch service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRunsTotal    *prometheus.CounterVec
	validationViolations *prometheus.CounterVec
	anomaliesQuarantined *prometheus.CounterVec
	lkgFallbacksTotal    *prometheus.CounterVec
	fetchFailuresTotal   *prometheus.CounterVec
	sourcesPaused        *prometheus.GaugeVec
	digestHealthScore    prometheus.Gauge
	crawlDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regwatch_pipeline_runs_total",
				Help: "Pipeline verdicts, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		validationViolations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regwatch_validation_violations_total",
				Help: "Validation violations, labeled by taxonomy code.",
			},
			[]string{"code"},
		)

		anomaliesQuarantined = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regwatch_anomalies_quarantined_total",
				Help: "Items held for human review, labeled by source.",
			},
			[]string{"source"},
		)

		lkgFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regwatch_lkg_fallbacks_total",
				Help: "Times a last-known-good snapshot was served, labeled by source.",
			},
			[]string{"source"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regwatch_fetch_failures_total",
				Help: "Failed fetch attempts, labeled by source.",
			},
			[]string{"source"},
		)

		sourcesPaused = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regwatch_source_paused",
				Help: "1 when a source has exhausted automatic retries.",
			},
			[]string{"source", "category"},
		)

		digestHealthScore = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "regwatch_digest_health_score",
				Help: "Health score of the most recent weekly digest.",
			},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regwatch_crawl_duration_seconds",
				Help:    "Fetch plus extraction latency per attempt, labeled by source.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePipeline counts one pipeline verdict.
func ObservePipeline(source, status string) {
	Init()
	pipelineRunsTotal.WithLabelValues(source, status).Inc()
}

// ObserveViolation counts one validation violation by taxonomy code.
func ObserveViolation(code string) {
	Init()
	validationViolations.WithLabelValues(code).Inc()
}

// ObserveQuarantine counts one quarantined anomaly.
func ObserveQuarantine(source string) {
	Init()
	anomaliesQuarantined.WithLabelValues(source).Inc()
}

// ObserveFallback counts one last-known-good fallback.
func ObserveFallback(source string) {
	Init()
	lkgFallbacksTotal.WithLabelValues(source).Inc()
}

// ObserveFetchFailure counts one failed fetch.
func ObserveFetchFailure(source string) {
	Init()
	fetchFailuresTotal.WithLabelValues(source).Inc()
}

// SetPaused flips the paused gauge for a (source, category) pair.
func SetPaused(source, category string, paused bool) {
	Init()
	v := 0.0
	if paused {
		v = 1
	}
	sourcesPaused.WithLabelValues(source, category).Set(v)
}

// SetHealthScore records the latest digest health score.
func SetHealthScore(score int) {
	Init()
	digestHealthScore.Set(float64(score))
}

// ObserveCrawlDuration records one attempt's latency in seconds.
func ObserveCrawlDuration(source string, seconds float64) {
	Init()
	crawlDurationSeconds.WithLabelValues(source).Observe(seconds)
}
