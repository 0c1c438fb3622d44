// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Individual event kinds can be toggled in configuration so a noisy
// event (a song change every few minutes) can be silenced without losing
// error alerts.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notifications
