// Package workers computes worker pool sizes for background processing.
//
// Counts are derived from GOMAXPROCS so container CPU limits are respected,
// with an environment override (PIPELINE_WORKERS) for manual tuning.
package workers
