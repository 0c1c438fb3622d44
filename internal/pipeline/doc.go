// Package pipeline coordinates the daemon's reaction to player events.
//
// The Orchestrator consumes the monitor's event stream and drives the rest of
// the system: a song change invalidates the analysis cache and pre-warms the
// new song's lines, a line change spawns a completion goroutine that resolves
// the line's visual description and looks up the best-matching image, and a
// lost signal arms a grace timer that returns the daemon to idle when the
// player stays quiet.
//
// Completions race the player. Every completion carries the song epoch and
// line index it was requested for, and results are applied only while that
// pair is still current, so a slow lookup can never overwrite a newer line.
package pipeline
