// Package api defines wire-format types and converters for the IPC layer. It
// translates internal pipeline models into transport-friendly DTOs that the
// CLI and other consumers can render without coupling to internal types.
//
// # Key Types
//
// PipelineStatus: orchestrator state, current song and line, cache fill, and
// the last display update.
//
// SongView: the "what's playing now" payload for the song command.
//
// # Converters
//
// FromPipelineStatus: pipeline.Status -> PipelineStatus.
//
// FromCheckResults: preflight results -> CheckResult slice.
//
// FromIndexInfo: index.Info -> IndexSummary.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (pipeline.State) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
