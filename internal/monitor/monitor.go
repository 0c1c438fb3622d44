package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lyriscope/internal/config"
	"lyriscope/internal/logging"
	"lyriscope/internal/player"
	"lyriscope/internal/textutil"
)

// EventKind identifies what a poll observed.
type EventKind int

const (
	// EventSongChanged reports a new song with its lyric lines.
	EventSongChanged EventKind = iota
	// EventLineChanged reports a debounced active-line change.
	EventLineChanged
	// EventSignalLost reports that reads failed for the configured streak.
	EventSignalLost
)

func (k EventKind) String() string {
	switch k {
	case EventSongChanged:
		return "song_changed"
	case EventLineChanged:
		return "line_changed"
	case EventSignalLost:
		return "signal_lost"
	default:
		return "unknown"
	}
}

// Event is what the monitor writes to its channel. Song is set for
// SongChanged; Index and Text are set for LineChanged.
type Event struct {
	Kind  EventKind
	Song  player.Song
	Index int
	Text  string
}

type lineObservation struct {
	index int
	text  string
	valid bool
}

// Monitor polls a player source on a fixed cadence, debounces line changes,
// counts consecutive read failures, and emits events for the orchestrator.
// It never touches the cache or display.
type Monitor struct {
	source player.Source
	logger *slog.Logger
	events chan Event

	pollInterval    time.Duration
	songCheckEvery  int
	debouncePolls   int
	signalLostAfter int
	titleSimilarity float64

	// Polling cursor, owned by the loop goroutine.
	pollCount    int
	currentTitle string
	currentFP    *textutil.Fingerprint
	lastReported lineObservation
	candidate    lineObservation
	candidateHit int
	failures     int
	signalLost   bool

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor constructs a monitor over the supplied source using the monitor
// configuration section.
func NewMonitor(cfg *config.Config, source player.Source, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}

	poll := time.Duration(cfg.Monitor.PollIntervalMs) * time.Millisecond
	if poll <= 0 {
		poll = 600 * time.Millisecond
	}
	songCheckEvery := cfg.Monitor.SongCheckEvery
	if songCheckEvery <= 0 {
		songCheckEvery = 5
	}
	debounce := cfg.Monitor.DebouncePolls
	if debounce <= 0 {
		debounce = 2
	}
	lostAfter := cfg.Monitor.SignalLostAfter
	if lostAfter <= 0 {
		lostAfter = 5
	}
	similarity := cfg.Monitor.TitleSimilarity
	if similarity <= 0 || similarity > 1 {
		similarity = 0.9
	}

	return &Monitor{
		source:          source,
		logger:          logging.NewComponentLogger(logger, "monitor"),
		events:          make(chan Event, 16),
		pollInterval:    poll,
		songCheckEvery:  songCheckEvery,
		debouncePolls:   debounce,
		signalLostAfter: lostAfter,
		titleSimilarity: similarity,
	}
}

// Events returns the channel the monitor writes observations to.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Start begins the poll loop.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	// The full song record is re-read on its own slower cadence; while no
	// song is tracked (startup, post signal loss) every poll checks so
	// recovery is prompt.
	checkSong := m.currentTitle == "" || m.signalLost || m.pollCount%m.songCheckEvery == 0
	m.pollCount++

	if checkSong {
		song, err := m.source.CurrentSong(ctx)
		if err != nil {
			m.recordFailure(err)
			return
		}
		m.recordSuccess()
		m.observeSong(song)
	}

	line, err := m.source.ActiveLine(ctx)
	if err != nil {
		m.recordFailure(err)
		return
	}
	m.recordSuccess()

	if line.None() || line.Text == "" {
		// Present but empty is NoChange, never a failed read.
		return
	}
	m.observeLine(line)
}

func (m *Monitor) observeSong(song player.Song) {
	if song.Title == m.currentTitle {
		return
	}

	// Cosmetic retitles (decoration suffixes, remaster tags) stay the same
	// song; a spurious SongChanged would tear down the cache mid-track.
	if m.currentTitle != "" {
		if sim := textutil.CosineSimilarity(m.currentFP, textutil.NewFingerprint(song.Title)); sim >= m.titleSimilarity {
			m.logger.Debug("ignoring cosmetic title variant",
				logging.String(logging.FieldSongTitle, song.Title),
				logging.Float64("similarity", sim),
			)
			return
		}
	}

	m.currentTitle = song.Title
	m.currentFP = textutil.NewFingerprint(song.Title)
	m.lastReported = lineObservation{}
	m.candidate = lineObservation{}
	m.candidateHit = 0

	m.logger.Info("song changed",
		logging.String(logging.FieldSongTitle, song.Title),
		logging.Int("lines", len(song.Lines)),
		logging.String(logging.FieldEventType, "song_changed"),
	)
	m.emit(Event{Kind: EventSongChanged, Song: song})
}

func (m *Monitor) observeLine(line player.ActiveLine) {
	observed := lineObservation{index: line.Index, text: line.Text, valid: true}
	if m.lastReported.valid && observed == m.lastReported {
		m.candidate = lineObservation{}
		m.candidateHit = 0
		return
	}

	if m.candidate.valid && observed == m.candidate {
		m.candidateHit++
	} else {
		m.candidate = observed
		m.candidateHit = 1
	}

	if m.candidateHit < m.debouncePolls {
		return
	}

	m.lastReported = observed
	m.candidate = lineObservation{}
	m.candidateHit = 0

	m.logger.Debug("line changed",
		logging.Int(logging.FieldLineIndex, observed.index),
		logging.String("text", observed.text),
	)
	m.emit(Event{Kind: EventLineChanged, Index: observed.index, Text: observed.text})
}

func (m *Monitor) recordFailure(err error) {
	m.failures++
	if m.failures < m.signalLostAfter || m.signalLost {
		return
	}
	m.signalLost = true

	// Drop the cursor so recovery re-reports the song and active line.
	m.currentTitle = ""
	m.currentFP = nil
	m.lastReported = lineObservation{}
	m.candidate = lineObservation{}
	m.candidateHit = 0

	logging.WarnWithContext(m.logger, "player signal lost", "signal_lost",
		logging.Error(err),
		logging.Int("failures", m.failures),
		logging.String(logging.FieldErrorHint, "check the browser userscript connection to the bridge"),
	)
	m.emit(Event{Kind: EventSignalLost})
}

func (m *Monitor) recordSuccess() {
	if m.signalLost {
		m.logger.Info("player signal recovered",
			logging.Int("failures", m.failures),
			logging.String(logging.FieldEventType, "signal_recovered"),
		)
	}
	m.failures = 0
	m.signalLost = false
}

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}
