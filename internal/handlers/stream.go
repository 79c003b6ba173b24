package handlers

import (
	"net/http"
)

// StreamAsset serves the asset's media bytes with byte-range support. The
// streaming engine owns gating and range semantics; this handler only
// resolves the asset.
func (h *Handlers) StreamAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	h.streamer.ServeVideo(w, r, a)
}

// GetThumbnail serves the asset's thumbnail image.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	h.streamer.ServeThumbnail(w, r, a)
}

// DownloadAsset serves the original file as an attachment.
func (h *Handlers) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	h.streamer.ServeDownload(w, r, a)
}
