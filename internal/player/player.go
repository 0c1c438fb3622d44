package player

import (
	"context"
	"errors"
)

// Song is a point-in-time view of what the player reports playing: the track
// title and its lyric lines in playback order, already cleaned of decoration.
type Song struct {
	Title string
	Lines []string
}

// ActiveLine is the lyric line the player currently highlights. Index points
// into the matching Song's Lines; -1 means the player shows no highlighted
// line right now, which is a successful read, not a failure.
type ActiveLine struct {
	Index int
	Text  string
}

// None reports whether no line is currently highlighted.
func (l ActiveLine) None() bool {
	return l.Index < 0
}

// Source reads the player state. Implementations must return an error for
// reads the monitor should count toward signal loss (no data, stale data) and
// a zero-value ActiveLine with Index -1 for "present but no highlighted line".
type Source interface {
	CurrentSong(ctx context.Context) (Song, error)
	ActiveLine(ctx context.Context) (ActiveLine, error)
}

var (
	// ErrNoSnapshot indicates the bridge has not received any player state yet.
	ErrNoSnapshot = errors.New("player: no snapshot received")

	// ErrStale indicates the last player state is older than the freshness window.
	ErrStale = errors.New("player: snapshot stale")

	// ErrNoSong indicates the player state carries no song title.
	ErrNoSong = errors.New("player: no song in snapshot")
)
