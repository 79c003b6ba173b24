// Package thumbnail produces representative still images for media assets.
//
// The primary path grabs a single frame from a video via ffmpeg and writes
// it as a scaled JPEG. Extraction is best-effort: any failure yields "no
// thumbnail" rather than an error, because a missing thumbnail must never
// abort processing.
//
// FromImage supports replacing an asset's thumbnail with a caller-supplied
// poster image (JPEG, PNG, GIF or WebP).
package thumbnail
