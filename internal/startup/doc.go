// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// A .env file in the working directory is honored when present. The
// following environment variables are supported:
//
//   - DATA_DIR: Root data directory for the database, uploads, and thumbnails (default: /data)
//   - UPLOAD_DIR: Override for the upload directory (default: DATA_DIR/uploads)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Expose the Prometheus /metrics endpoint (default: true)
//   - REDIS_ADDR: Redis address for cross-instance event fanout; unset selects the in-process bus
//   - REDIS_CHANNEL: Redis pub/sub channel name (default: media-pipeline:events)
//   - PIPELINE_WORKERS: Worker pool size; 0 sizes from available CPUs
//   - PIPELINE_QUEUE_SIZE: Processing job queue depth (default: 64)
//   - PROBE_TIMEOUT: ffprobe invocation timeout as Go duration (default: 30s)
//   - THUMBNAIL_TIMEOUT: ffmpeg frame extraction timeout as Go duration (default: 30s)
//   - MAX_UPLOAD_MB: Maximum accepted upload size in MiB (default: 2048)
//   - CLASSIFIER_SEED: Seed for the mock classifier; 0 derives one from the clock
//   - SENSITIVITY_THRESHOLD_<CATEGORY>: Per-category flagging threshold override (0-100)
//   - SENSITIVITY_THRESHOLD_OVERALL: Overall score flagging threshold override (0-100)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// # Directory Setup
//
// LoadConfig creates the data, upload, and thumbnail directories when
// missing and verifies write access to each; a directory that cannot be
// written is a fatal configuration error.
package startup
