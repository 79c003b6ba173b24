/*
Package streaming serves stored media over HTTP with byte-range support.

The Streamer implements the delivery surface for processed assets: status-gated
video playback with single-range partial content (206), full-body fallback
(200), unsatisfiable-range rejection (416), thumbnail serving with cache
headers, and attachment downloads. View counts are incremented asynchronously
on playback so a slow counter never delays first byte.

Response bodies flow through a TimeoutWriter, which bounds individual writes
and terminates connections that go idle, so slow or vanished clients cannot
pin server resources for the length of a large file.
*/
package streaming
