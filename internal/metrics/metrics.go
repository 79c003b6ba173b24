package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Asset store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_store_queries_total",
			Help: "Total number of asset store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_store_query_duration_seconds",
			Help:    "Asset store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	AssetsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_pipeline_assets_by_status",
			Help: "Number of assets in each processing status",
		},
		[]string{"status"},
	)
)

// Pipeline metrics
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"outcome"}, // "completed", "failed"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"}, // "validate", "probe", "thumbnail", "classify"
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_queue_depth",
			Help: "Number of pipeline jobs waiting for a worker",
		},
	)

	PipelineActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_active_runs",
			Help: "Number of pipeline runs currently executing",
		},
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_classifications_total",
			Help: "Total number of sensitivity classifications by verdict",
		},
		[]string{"verdict"}, // "safe", "flagged", "error"
	)
)

// Streaming metrics
var (
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_stream_requests_total",
			Help: "Total number of stream requests by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "full", "range", "thumbnail", "download"
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_pipeline_stream_bytes_total",
			Help: "Total bytes served by the streaming engine",
		},
	)
)

// Notifier metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_pipeline_events_published_total",
			Help: "Total number of progress events published",
		},
		[]string{"event"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_pipeline_event_subscribers",
			Help: "Number of live event subscribers",
		},
	)
)
