package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/pipeline"
	"media-pipeline/internal/store"
	"media-pipeline/internal/thumbnail"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipartMemoryLimit caps the in-memory portion of a multipart parse;
// the file part spills to disk beyond this.
const multipartMemoryLimit = 32 << 20

// UploadAsset accepts a multipart upload, persists the source bytes and
// the asset record, and submits a processing run. Responds 202: the asset
// is accepted, not yet playable.
func (h *Handlers) UploadAsset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONError(w, "Upload exceeds the size limit", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType, ok := mediatypes.ByExtension(header.Filename)
	if !ok {
		writeJSONError(w, "Unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	destPath := filepath.Join(h.cfg.UploadDir, id+ext)

	dst, err := os.Create(destPath)
	if err != nil {
		logging.Error("creating upload file %s: %v", destPath, err)
		writeJSONError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	size, err := io.Copy(dst, file)
	if cerr := dst.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		removeFile(destPath)
		logging.Error("writing upload file %s: %v", destPath, err)
		writeJSONError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	asset := &store.Asset{
		ID:              id,
		Title:           title,
		OriginalName:    header.Filename,
		SourcePath:      destPath,
		MimeType:        mimeType,
		Size:            size,
		Status:          store.StatusUploading,
		ProgressMessage: "Upload received",
		Sensitivity:     store.Sensitivity{Status: store.SensitivityPending},
	}
	if err := h.store.Create(r.Context(), asset); err != nil {
		removeFile(destPath)
		logging.Error("creating asset record %s: %v", id, err)
		writeJSONError(w, "Failed to create asset", http.StatusInternalServerError)
		return
	}

	if err := h.runner.Submit(id, destPath); err != nil {
		// Roll back: an asset that never enters the pipeline would sit
		// in uploading forever.
		if derr := h.store.Delete(r.Context(), id); derr != nil {
			logging.Error("rolling back asset %s: %v", id, derr)
		}
		removeFile(destPath)
		writeJSONError(w, "Processing queue is full, try again later", http.StatusServiceUnavailable)
		return
	}

	logging.Info("Accepted upload %s (%s, %d bytes) in %v", id, header.Filename, size, time.Since(start))

	created, err := h.store.Get(r.Context(), id)
	if err != nil {
		created = asset
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, created)
}

// ListAssets returns a page of assets, optionally filtered by status.
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{
		Page:     1,
		PageSize: 50,
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := store.Status(statusParam)
		if !validStatuses[status] {
			writeJSONError(w, "Unknown status filter", http.StatusBadRequest)
			return
		}
		opts.Status = status
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && pageSize > 0 && pageSize <= 500 {
		opts.PageSize = pageSize
	}

	listing, err := h.store.List(r.Context(), opts)
	if err != nil {
		logging.Error("listing assets: %v", err)
		writeJSONError(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, listing)
}

var validStatuses = map[store.Status]bool{
	store.StatusUploading:  true,
	store.StatusProcessing: true,
	store.StatusAnalyzing:  true,
	store.StatusCompleted:  true,
	store.StatusFailed:     true,
}

// GetAsset returns one asset record.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, a)
}

// DeleteAsset removes an asset record and its files. Assets still moving
// through the pipeline cannot be deleted.
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	if !a.Status.Terminal() {
		writeJSONError(w, "Asset is still processing", http.StatusConflict)
		return
	}

	if err := h.store.Delete(r.Context(), a.ID); err != nil {
		logging.Error("deleting asset %s: %v", a.ID, err)
		writeJSONError(w, "Failed to delete asset", http.StatusInternalServerError)
		return
	}

	removeFile(a.SourcePath)
	if a.ThumbnailPath != nil {
		removeFile(*a.ThumbnailPath)
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSensitivity returns the classification verdict for an asset. Before
// analysis completes this reports the pending status rather than an error.
func (h *Handlers) GetSensitivity(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"assetId":          a.ID,
		"processingStatus": a.Status,
		"sensitivity":      a.Sensitivity,
	})
}

// ReanalyzeAsset queues a fresh classification run for a completed asset.
func (h *Handlers) ReanalyzeAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.runner.Reanalyze(r.Context(), id)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"status": "queued"})
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, "Asset not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrNotCompleted), errors.Is(err, pipeline.ErrAlreadyRunning):
		writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrStopped):
		writeJSONError(w, "Processing queue is unavailable", http.StatusServiceUnavailable)
	default:
		logging.Error("reanalyzing asset %s: %v", id, err)
		writeJSONError(w, "Failed to queue reanalysis", http.StatusInternalServerError)
	}
}

// UploadPoster replaces an asset's thumbnail with a caller-provided image.
func (h *Handlers) UploadPoster(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAsset(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeJSONError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSONError(w, "Missing image field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	destPath := filepath.Join(h.cfg.ThumbnailDir, a.ID+".jpg")
	if err := thumbnail.FromImage(file, destPath); err != nil {
		writeJSONError(w, "Unreadable image", http.StatusBadRequest)
		return
	}

	if err := h.store.Update(r.Context(), a.ID, store.AssetUpdate{ThumbnailPath: &destPath}); err != nil {
		logging.Error("recording poster for asset %s: %v", a.ID, err)
		writeJSONError(w, "Failed to update asset", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

// loadAsset resolves the {id} route variable. On failure it writes the
// error response and returns ok=false.
func (h *Handlers) loadAsset(w http.ResponseWriter, r *http.Request) (*store.Asset, bool) {
	id := mux.Vars(r)["id"]

	a, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONError(w, "Asset not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("loading asset %s: %v", id, err)
		writeJSONError(w, "Failed to load asset", http.StatusInternalServerError)
		return nil, false
	}
	return a, true
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("removing %s: %v", path, err)
	}
}
