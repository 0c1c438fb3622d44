// Package daemon coordinates the long-running lyriscope process.
//
// It wires the player bridge, monitor, analysis cache, and pipeline
// orchestrator into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon runs startup readiness checks in the
// background, aggregates status for IPC consumers, and owns the test
// notification hook.
//
// Keep orchestration logic here: pipeline behavior lives in its own packages
// while the daemon focuses on startup order, shutdown, and high level
// coordination.
package daemon
