// Package notifier delivers pipeline progress events to subscribed clients.
//
// The pipeline depends only on the Publish capability; delivery fan-out is
// a backend concern. Two backends are provided: an in-memory bus for
// single-process deployments, and a Redis pub/sub bus that forwards events
// between processes so subscribers on any instance see every event.
//
// Publishing is fire-and-forget: a slow or absent subscriber never blocks
// or fails the publisher.
package notifier
