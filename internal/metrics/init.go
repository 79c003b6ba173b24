package metrics

// InitializeMetrics pre-populates expected label combinations so that
// every series is exported from the first Prometheus scrape.
// Call once at startup.
func InitializeMetrics() {
	for _, status := range []string{"uploading", "processing", "analyzing", "completed", "failed"} {
		AssetsByStatus.WithLabelValues(status)
	}

	for _, outcome := range []string{"completed", "failed"} {
		PipelineRunsTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"validate", "probe", "thumbnail", "classify"} {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, verdict := range []string{"safe", "flagged", "error"} {
		ClassificationsTotal.WithLabelValues(verdict)
	}

	for _, kind := range []string{"full", "range", "thumbnail", "download"} {
		StreamRequestsTotal.WithLabelValues(kind, "success")
		StreamRequestsTotal.WithLabelValues(kind, "error")
	}

	for _, op := range []string{"create", "get", "update", "increment_views", "list", "delete", "stats"} {
		StoreQueryTotal.WithLabelValues(op, "success")
		StoreQueryTotal.WithLabelValues(op, "error")
		StoreQueryDuration.WithLabelValues(op)
	}

	for _, event := range []string{"processing:update", "processing:error", "sensitivity:complete", "video:ready"} {
		EventsPublishedTotal.WithLabelValues(event)
	}
}
