// Package config loads, normalizes, and validates lyriscope configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LYRISCOPE_LLM_API_KEY. The Config type centralizes every knob the daemon and
// CLI need, from poll cadence and pre-warm pool sizing to index backends and
// display targets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
