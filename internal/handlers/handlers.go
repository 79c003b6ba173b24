package handlers

import (
	"context"
	"net/http"
	"time"

	"media-pipeline/internal/notifier"
	"media-pipeline/internal/store"
	"media-pipeline/internal/streaming"

	"github.com/gorilla/mux"
)

// Runner is the processing surface the handlers submit work to.
type Runner interface {
	Submit(assetID, sourcePath string) error
	Reanalyze(ctx context.Context, assetID string) error
}

// Config carries the pieces of application configuration the handlers need.
type Config struct {
	UploadDir      string
	ThumbnailDir   string
	MaxUploadBytes int64
	MetricsEnabled bool
}

type Handlers struct {
	store     *store.Store
	runner    Runner
	streamer  *streaming.Streamer
	events    notifier.Subscribable
	cfg       Config
	startTime time.Time
}

func New(st *store.Store, runner Runner, streamer *streaming.Streamer, events notifier.Subscribable, cfg Config) *Handlers {
	return &Handlers{
		store:     st,
		runner:    runner,
		streamer:  streamer,
		events:    events,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// Router assembles the full API surface.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.UploadAsset).Methods(http.MethodPost)
	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}", h.DeleteAsset).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id}/stream", h.StreamAsset).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/assets/{id}/thumbnail", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/thumbnail", h.UploadPoster).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id}/download", h.DownloadAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/sensitivity", h.GetSensitivity).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id}/reanalyze", h.ReanalyzeAsset).Methods(http.MethodPost)
	api.HandleFunc("/events", h.Events).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	if h.cfg.MetricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	return r
}
