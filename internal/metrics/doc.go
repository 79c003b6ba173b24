// Package metrics defines Prometheus instrumentation for the media
// pipeline service.
//
// Metrics are registered through promauto at package init and cover four
// areas: the HTTP surface, the asset store, pipeline runs (per stage), and
// byte-range streaming. A background Collector periodically exports
// store-level asset counts so dashboards can graph queue depth by status.
package metrics
