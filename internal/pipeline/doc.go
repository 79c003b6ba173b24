// Package pipeline orchestrates asset processing as an ordered stage
// sequence: source validation, metadata probing, thumbnail extraction, and
// sensitivity classification.
//
// Each asset runs through the stages strictly sequentially, advancing its
// stored status and progress through fixed checkpoints. After every
// checkpoint the updated fields are persisted first and the progress event
// is published second, so a client polling the store after receiving an
// event never observes stale data.
//
// Probe and thumbnail failures are non-fatal: the affected fields stay
// null and the run continues. Everything else is caught by a single
// top-level error boundary that marks the asset failed and publishes one
// error event.
//
// Runs execute on a bounded worker pool. Runs for different assets are
// independent; runs for the same asset are serialized, and reanalysis is
// rejected while a run is in flight.
package pipeline
