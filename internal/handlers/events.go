package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/notifier"
)

// heartbeatInterval keeps idle SSE connections from being reaped by
// intermediaries.
const heartbeatInterval = 25 * time.Second

// Events streams processing events to the client as Server-Sent Events.
// The optional assetId query parameter narrows the stream to one asset;
// without it, every asset's events are delivered.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	scope := r.URL.Query().Get("assetId")
	if scope == "" {
		scope = notifier.ScopeAll
	}

	events, cancel := h.events.Subscribe(scope)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logging.Debug("SSE subscriber connected (scope %s)", scope)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logging.Debug("SSE subscriber disconnected (scope %s)", scope)
			return

		case <-heartbeat.C:
			// Comment lines are ignored by EventSource clients.
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				logging.Warn("marshaling %s event: %v", ev.Name, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}
