// Package probe extracts technical metadata from media files using ffprobe.
//
// Probing is strictly best-effort: a missing tool, a non-zero exit, a
// timeout, or malformed output all produce a Result with nil fields rather
// than an error. Metadata extraction failure must never abort processing.
package probe
