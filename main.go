package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-pipeline/internal/classifier"
	"media-pipeline/internal/handlers"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/middleware"
	"media-pipeline/internal/notifier"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/probe"
	"media-pipeline/internal/startup"
	"media-pipeline/internal/store"
	"media-pipeline/internal/streaming"
	"media-pipeline/internal/thumbnail"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize the asset store
	storeStart := time.Now()
	st, err := store.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize asset store: %v", err)
	}
	defer st.Close()
	startup.LogStoreInit(time.Since(storeStart))

	// Pre-register metric label values and start the store collector
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(st, 30*time.Second)
	collector.Start()

	// Event bus: Redis fanout when configured, in-process otherwise
	var bus notifier.Subscribable
	var redisBus *notifier.Redis
	if config.RedisAddr != "" {
		redisBus, err = notifier.NewRedis(config.RedisAddr, config.RedisChannel)
		if err != nil {
			logging.Warn("Redis unavailable (%v), falling back to in-process events", err)
			bus = notifier.NewMemory()
		} else {
			bus = redisBus
		}
	} else {
		bus = notifier.NewMemory()
	}

	// External media tools for the probe and thumbnail stages
	startup.LogMediaToolsInit()
	prober := probe.New(config.ProbeTimeout)
	extractor := thumbnail.New(config.ThumbnailTimeout)

	// Content classifier
	cls := classifier.NewMock(config.Thresholds, config.ClassifierSeed)

	// Processing pipeline
	startup.LogPipelineInit(config.PipelineWorkers, config.PipelineQueueSize)
	pipe := pipeline.New(st, bus, prober, extractor, cls, pipeline.Config{
		ThumbnailDir: config.ThumbnailDir,
		Workers:      config.PipelineWorkers,
		QueueSize:    config.PipelineQueueSize,
	})
	pipe.Start()

	// Delivery engine and HTTP surface
	streamer := streaming.NewStreamer(st, streaming.DefaultWriterConfig())
	h := handlers.New(st, pipe, streamer, bus, handlers.Config{
		UploadDir:      config.UploadDir,
		ThumbnailDir:   config.ThumbnailDir,
		MaxUploadBytes: config.MaxUploadBytes,
		MetricsEnabled: config.MetricsEnabled,
	})

	router := h.Router()
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Middleware stack: metrics innermost, then access log, then gzip
	metricsHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(metricsHandler)

	handler := middleware.Compression(middleware.DefaultCompressionConfig())(loggedHandler)

	// WriteTimeout stays 0: long-lived streams and SSE manage their own
	// timeouts through the streaming writer.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, pipe, collector, redisBus)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, pipe *pipeline.Pipeline, collector *metrics.Collector, redisBus *notifier.Redis) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Draining processing pipeline")
	pipe.Stop()
	startup.LogShutdownStepComplete("Pipeline drained")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if redisBus != nil {
		startup.LogShutdownStep("Closing Redis connection")
		if err := redisBus.Close(); err != nil {
			logging.Warn("Redis close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Redis connection closed")
		}
	}

	startup.LogShutdownComplete()
}
