// Package services defines shared utilities consumed by the pipeline
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp song session IDs, epochs, line indexes, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (transient vs permanent, recoverable vs fatal) consistent
//     across components.
//
// Use these helpers when wiring new component logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
