// Package store provides SQLite persistence for media assets.
//
// It holds the durable record of each uploaded asset: processing status and
// progress, technical metadata extracted by the probe stage, the thumbnail
// location, sensitivity classification results, and the view counter.
//
// The database uses WAL mode for concurrent read performance. Partial
// updates are applied as a single UPDATE statement so readers never observe
// a torn multi-field write.
package store
