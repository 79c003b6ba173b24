// Package middleware provides HTTP middleware for the media pipeline API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with path normalization
//   - Response compression for JSON payloads (media bytes pass through)
package middleware
