// Package player defines the player signal source consumed by the monitor.
//
// The Source interface exposes two reads: the current song (title plus lyric
// lines in playback order) and the currently highlighted line. The production
// implementation is a websocket bridge: lyriscope hosts an endpoint on
// loopback and a browser-side userscript pushes player state JSON whenever
// the lyrics view changes. The bridge keeps only the latest snapshot; a
// snapshot older than the configured freshness window reads as a failed read
// so the monitor's signal-loss counting sees a silent userscript the same way
// as a closed one.
package player
