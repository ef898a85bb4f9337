// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditJobsTotal             *prometheus.CounterVec
	analyzerResultsTotal       *prometheus.CounterVec
	analyzerDurationSeconds    *prometheus.HistogramVec
	activeAnalyses             prometheus.Gauge
	jobProcessingSeconds       prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_jobs_total",
				Help: "Total number of audit jobs reaching a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		analyzerResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_analyzer_results_total",
				Help: "Total number of analyzer settlements, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		analyzerDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auditor_analyzer_duration_seconds",
				Help:    "Histogram of per-analyzer wall-clock durations, labeled by category.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"category"},
		)

		activeAnalyses = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auditor_active_analyses",
				Help: "Number of audit jobs currently in the analysis phase.",
			},
		)

		jobProcessingSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auditor_job_processing_seconds",
				Help:    "Histogram of full analysis-phase durations.",
				Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status and
// records the analysis-phase duration.
func ObserveJob(status string, duration time.Duration) {
	auditJobsTotal.WithLabelValues(status).Inc()
	jobProcessingSeconds.Observe(duration.Seconds())
}

// ObserveAnalyzer records one analyzer settlement.
func ObserveAnalyzer(category string, outcome string, duration time.Duration) {
	analyzerResultsTotal.WithLabelValues(category, outcome).Inc()
	analyzerDurationSeconds.WithLabelValues(category).Observe(duration.Seconds())
}

// IncActiveAnalyses increments the in-flight analysis gauge.
func IncActiveAnalyses() {
	activeAnalyses.Inc()
}

// DecActiveAnalyses decrements the in-flight analysis gauge.
func DecActiveAnalyses() {
	activeAnalyses.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
