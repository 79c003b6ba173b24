package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/mediatypes"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/store"
)

// thumbnailMaxAge is how long clients may cache thumbnails, in seconds.
const thumbnailMaxAge = 86400

var errMalformedRange = errors.New("malformed range header")

// ViewCounter records one playback of an asset.
type ViewCounter interface {
	IncrementViews(ctx context.Context, id string) error
}

// Streamer serves asset bytes over HTTP. Callers resolve the asset first;
// the streamer owns gating, range semantics, headers, and body delivery.
type Streamer struct {
	views ViewCounter
	cfg   WriterConfig
}

// NewStreamer builds a streamer. views may be nil to disable counting.
func NewStreamer(views ViewCounter, cfg WriterConfig) *Streamer {
	return &Streamer{views: views, cfg: cfg}
}

// byteRange is a parsed, un-clamped request range.
type byteRange struct {
	start int64
	end   int64 // -1 means open-ended
}

// parseRange parses a single "bytes=start-end" or "bytes=start-" header.
// Suffix ranges and multi-range requests are treated as malformed, which
// callers downgrade to a full response.
func parseRange(header string) (byteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, errMalformedRange
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return byteRange{}, errMalformedRange
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, errMalformedRange
	}

	r := byteRange{start: start, end: -1}
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return byteRange{}, errMalformedRange
		}
		r.end = end
	}
	return r, nil
}

// ServeVideo delivers an asset's media bytes, honoring a single byte
// range. Assets that have not completed processing are rejected with 409
// regardless of whether their source file exists.
func (s *Streamer) ServeVideo(w http.ResponseWriter, r *http.Request, a *store.Asset) {
	kind := "full"
	if r.Header.Get("Range") != "" {
		kind = "range"
	}

	if a.Status != store.StatusCompleted {
		metrics.StreamRequestsTotal.WithLabelValues(kind, "error").Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "Asset is not ready for streaming",
			"status":   a.Status,
			"progress": a.Progress,
		})
		return
	}

	f, err := os.Open(a.SourcePath)
	if err != nil {
		logging.Error("opening source for asset %s: %v", a.ID, err)
		metrics.StreamRequestsTotal.WithLabelValues(kind, "error").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Media file not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues(kind, "error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to stat media file"})
		return
	}
	size := info.Size()

	contentType := mediatypes.ForVideo(a.MimeType, a.SourcePath)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	// Resolve the range before counting the view: a rejected range serves
	// no bytes and is not a playback.
	var br byteRange
	haveRange := false
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		parsed, err := parseRange(rangeHeader)
		switch {
		case err != nil:
			// Downgrade unparseable ranges to a full response.
			logging.Debug("asset %s: %v (%q), serving full body", a.ID, err, rangeHeader)
		case parsed.start >= size:
			metrics.StreamRequestsTotal.WithLabelValues(kind, "error").Inc()
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			writeJSON(w, http.StatusRequestedRangeNotSatisfiable, map[string]any{
				"error":    "Requested range not satisfiable",
				"fileSize": size,
			})
			return
		default:
			br = parsed
			haveRange = true
		}
	}

	s.countView(a.ID)

	if !haveRange {
		s.serveFull(w, r, f, size, kind)
		return
	}

	end := br.end
	if end < 0 || end >= size {
		end = size - 1
	}
	length := end - br.start + 1

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)

	tw := NewTimeoutWriter(r.Context(), w, s.cfg)
	defer tw.Close()
	_, err = io.Copy(tw, io.NewSectionReader(f, br.start, length))
	s.finish(kind, a.ID, tw, err)
}

func (s *Streamer) serveFull(w http.ResponseWriter, r *http.Request, f *os.File, size int64, kind string) {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(r.Context(), w, s.cfg)
	defer tw.Close()
	_, err := io.Copy(tw, f)
	s.finish(kind, "", tw, err)
}

// finish records the outcome of a body copy. Client disconnects are normal
// for media playback and count as success.
func (s *Streamer) finish(kind, assetID string, tw *TimeoutWriter, err error) {
	written, elapsed := tw.Stats()
	switch {
	case err == nil, errors.Is(err, ErrClientGone):
		metrics.StreamRequestsTotal.WithLabelValues(kind, "success").Inc()
		logging.Debug("stream %s done: %d bytes in %v", kind, written, elapsed)
	default:
		metrics.StreamRequestsTotal.WithLabelValues(kind, "error").Inc()
		logging.Warn("stream %s for asset %s aborted after %d bytes: %v", kind, assetID, written, err)
	}
}

// ServeThumbnail delivers an asset's thumbnail with cache headers. Unlike
// video delivery it is not status-gated: the thumbnail becomes servable as
// soon as the extraction stage persists it.
func (s *Streamer) ServeThumbnail(w http.ResponseWriter, r *http.Request, a *store.Asset) {
	if a.ThumbnailPath == nil {
		metrics.StreamRequestsTotal.WithLabelValues("thumbnail", "error").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Thumbnail not available"})
		return
	}

	f, err := os.Open(*a.ThumbnailPath)
	if err != nil {
		logging.Warn("opening thumbnail for asset %s: %v", a.ID, err)
		metrics.StreamRequestsTotal.WithLabelValues("thumbnail", "error").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Thumbnail not available"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues("thumbnail", "error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to stat thumbnail"})
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", thumbnailMaxAge))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		logging.Debug("thumbnail copy for asset %s: %v", a.ID, err)
		metrics.StreamRequestsTotal.WithLabelValues("thumbnail", "error").Inc()
		return
	}
	metrics.StreamRequestsTotal.WithLabelValues("thumbnail", "success").Inc()
}

// ServeDownload delivers the original file as an attachment. Gated the
// same way as playback.
func (s *Streamer) ServeDownload(w http.ResponseWriter, r *http.Request, a *store.Asset) {
	if a.Status != store.StatusCompleted {
		metrics.StreamRequestsTotal.WithLabelValues("download", "error").Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    "Asset is not ready for download",
			"status":   a.Status,
			"progress": a.Progress,
		})
		return
	}

	f, err := os.Open(a.SourcePath)
	if err != nil {
		logging.Error("opening source for asset %s: %v", a.ID, err)
		metrics.StreamRequestsTotal.WithLabelValues("download", "error").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Media file not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.StreamRequestsTotal.WithLabelValues("download", "error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to stat media file"})
		return
	}

	filename := a.OriginalName
	if filename == "" {
		filename = a.ID
	}
	w.Header().Set("Content-Type", mediatypes.ForVideo(a.MimeType, a.SourcePath))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	tw := NewTimeoutWriter(r.Context(), w, s.cfg)
	defer tw.Close()
	_, err = io.Copy(tw, f)
	s.finish("download", a.ID, tw, err)
}

// countView records a playback without blocking delivery.
func (s *Streamer) countView(assetID string) {
	if s.views == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.views.IncrementViews(ctx, assetID); err != nil {
			logging.Warn("incrementing views for asset %s: %v", assetID, err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Debug("encoding response body: %v", err)
	}
}
