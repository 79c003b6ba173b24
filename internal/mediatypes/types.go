package mediatypes

import (
	"path/filepath"
	"strings"
)

// FallbackVideo is the content type served when the extension is unknown
// and the asset record carries no stored MIME type.
const FallbackVideo = "video/mp4"

// videoMimeTypes maps video container extensions to their MIME types.
var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
	".ts":   "video/mp2t",
	".3gp":  "video/3gpp",
	".ogv":  "video/ogg",
}

// ByExtension returns the MIME type for the file's extension.
// The second return value reports whether the extension was recognized.
func ByExtension(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := videoMimeTypes[ext]
	return mime, ok
}

// ForVideo resolves the content type for a video file: the stored MIME type
// if non-empty, the extension table otherwise, and the generic video
// fallback when neither applies.
func ForVideo(storedMime, path string) string {
	if storedMime != "" {
		return storedMime
	}
	if mime, ok := ByExtension(path); ok {
		return mime
	}
	return FallbackVideo
}

// IsVideo reports whether the extension belongs to a known video container.
func IsVideo(path string) bool {
	_, ok := ByExtension(path)
	return ok
}
