package pipeline

import "time"

// State names the orchestrator's position in the song-tracking state machine.
type State string

const (
	StateIdle         State = "idle"
	StateTracking     State = "tracking"
	StateShuttingDown State = "shutting_down"
)

// DisplayState is the last update pushed to the display sinks.
type DisplayState struct {
	SongTitle   string
	LineIndex   int
	LyricText   string
	Description string
	ImagePath   string
	Score       float64
	Fallback    bool
	UpdatedAt   time.Time
}

// Status represents lightweight pipeline diagnostics for IPC and the CLI.
type Status struct {
	Running       bool
	State         State
	SongTitle     string
	SessionID     string
	LineIndex     int
	LineText      string
	CacheTotal    int
	CacheResolved int
	Display       DisplayState
	LastError     string
}

// Status returns the latest pipeline information.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	status := Status{
		Running:   o.running,
		State:     o.state,
		SongTitle: o.songTitle,
		SessionID: o.session,
		LineIndex: o.lineIndex,
		LineText:  o.lineText,
	}
	lastErr := o.lastErr
	o.mu.RUnlock()

	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	if o.cache != nil {
		stats := o.cache.Stats()
		status.CacheTotal = stats.Total
		status.CacheResolved = stats.Resolved
	}

	o.applyMu.Lock()
	status.Display = o.display
	o.applyMu.Unlock()
	return status
}

func (o *Orchestrator) setLastError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}
