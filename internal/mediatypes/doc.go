// Package mediatypes maps file extensions to MIME types for media delivery.
//
// The tables are intentionally closed: the streaming layer needs a stable,
// predictable content type for each supported container, with a generic
// video fallback for anything unrecognized.
package mediatypes
