// Package handlers provides HTTP request handlers for the media pipeline API.
//
// It includes handlers for:
//   - Asset upload and processing submission
//   - Asset listing, retrieval, and deletion
//   - Gated media streaming, thumbnails, and downloads
//   - Sensitivity results and reanalysis
//   - Server-sent processing events
//   - Health checks, stats, version, and metrics
package handlers
