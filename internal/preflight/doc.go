// Package preflight provides readiness checks for external services
// and filesystem paths that lyriscope depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs the outcome. Failing
//     checks do not stop the daemon; the pipeline degrades instead (text-only
//     display when the index is missing, silent notifications without a
//     topic). Only a bridge bind failure is fatal, and that surfaces from the
//     bridge itself, not from here.
//   - The CLI "lyriscope status" command uses the same results to display
//     service health next to the live pipeline snapshot.
//
// Each check is gated by its config section -- unconfigured features are
// reported as disabled, not failed.
package preflight
