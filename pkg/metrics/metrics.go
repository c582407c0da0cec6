// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	StageRunsTotal        *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	FilesObservedTotal    prometheus.Counter
	ChangeEventsTotal     prometheus.Counter
	RecordsCatalogedTotal prometheus.Counter
	RecordsSkippedTotal   *prometheus.CounterVec
	ExtractionsTotal      *prometheus.CounterVec
	PendingFiles          prometheus.Gauge
	ViewRows              prometheus.Gauge
	ViewCacheHitsTotal    prometheus.Counter
	ViewCacheMissesTotal  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StageRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_runs_total",
				Help: "Total stage invocations by stage and outcome (ok, error, noop).",
			},
			[]string{"stage", "outcome"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Stage invocation duration in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		FilesObservedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "watcher_files_observed_total",
				Help: "Total files seen in source listings across watcher runs.",
			},
		),
		ChangeEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "watcher_change_events_total",
				Help: "Total change events published by the watcher.",
			},
		),
		RecordsCatalogedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cataloger_records_total",
				Help: "Total file records inserted into the catalog.",
			},
		),
		RecordsSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cataloger_records_skipped_total",
				Help: "Change events skipped by reason (duplicate, filtered, malformed).",
			},
			[]string{"reason"},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_files_total",
				Help: "Extraction attempts by status (ok, failed, duplicate).",
			},
			[]string{"status"},
		),
		PendingFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "extractor_pending_files",
				Help: "Cataloged file versions with no extraction result.",
			},
		),
		ViewRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modeler_view_rows",
				Help: "Row count of the most recently built view.",
			},
		),
		ViewCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modeler_view_cache_hits_total",
				Help: "Total view cache hits.",
			},
		),
		ViewCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "modeler_view_cache_misses_total",
				Help: "Total view cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StageRunsTotal,
		m.StageDuration,
		m.FilesObservedTotal,
		m.ChangeEventsTotal,
		m.RecordsCatalogedTotal,
		m.RecordsSkippedTotal,
		m.ExtractionsTotal,
		m.PendingFiles,
		m.ViewRows,
		m.ViewCacheHitsTotal,
		m.ViewCacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
