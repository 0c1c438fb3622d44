package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"lyriscope/internal/analysis"
	"lyriscope/internal/config"
	"lyriscope/internal/display"
	"lyriscope/internal/embedding"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
	"lyriscope/internal/monitor"
	"lyriscope/internal/notifications"
	"lyriscope/internal/player"
)

// Components bundles the collaborators the orchestrator drives. Cache and
// Events are required; Encoder and Index may be nil when the daemon runs in
// text-only mode, and a nil Sink falls back to the log sink.
type Components struct {
	Cache    *analysis.Cache
	Encoder  embedding.Encoder
	Index    index.Index
	Sink     display.Sink
	Notifier notifications.Service
	Events   <-chan monitor.Event
}

// Orchestrator owns the daemon's song-tracking state machine.
type Orchestrator struct {
	logger   *slog.Logger
	cache    *analysis.Cache
	encoder  embedding.Encoder
	index    index.Index
	sink     display.Sink
	notifier notifications.Service
	events   <-chan monitor.Event

	lineWait time.Duration
	grace    time.Duration
	topK     int

	mu         sync.RWMutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	state      State
	epoch      uint64
	session    string
	songTitle  string
	lineIndex  int
	lineText   string
	graceTimer *time.Timer
	indexDown  bool
	lastErr    error

	loopWG sync.WaitGroup
	taskWG sync.WaitGroup

	// applyMu serializes the staleness check and the sink call so display
	// updates land in the order their lines became current.
	applyMu sync.Mutex
	display DisplayState
}

// New constructs an orchestrator from the analysis configuration section and
// the supplied components.
func New(cfg *config.Config, parts Components, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}

	lineWait := time.Duration(cfg.Analysis.LineWaitTimeoutMs) * time.Millisecond
	if lineWait <= 0 {
		lineWait = 3 * time.Second
	}
	grace := time.Duration(cfg.Monitor.GracePeriodSeconds) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	topK := cfg.Index.TopK
	if topK <= 0 {
		topK = 1
	}

	sink := parts.Sink
	if sink == nil {
		sink = display.NewLogSink(logger)
	}
	notifier := parts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	return &Orchestrator{
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		cache:     parts.Cache,
		encoder:   parts.Encoder,
		index:     parts.Index,
		sink:      sink,
		notifier:  notifier,
		events:    parts.Events,
		lineWait:  lineWait,
		grace:     grace,
		topK:      topK,
		state:     StateIdle,
		lineIndex: -1,
	}
}

// Start begins consuming monitor events.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o == nil {
		return errors.New("pipeline unavailable")
	}
	if o.cache == nil || o.events == nil {
		return errors.New("pipeline requires a cache and an event stream")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return errors.New("pipeline already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.ctx = runCtx
	o.cancel = cancel
	o.running = true
	o.state = StateIdle

	o.loopWG.Add(1)
	go o.loop(runCtx)
	return nil
}

// Stop halts event handling and waits for in-flight completions to drain.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.state = StateShuttingDown
	o.disarmGraceLocked()
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.loopWG.Wait()
	o.taskWG.Wait()
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer o.loopWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.events:
			if !ok {
				return
			}
			o.handleEvent(ctx, ev)
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev monitor.Event) {
	switch ev.Kind {
	case monitor.EventSongChanged:
		o.handleSongChanged(ctx, ev.Song)
	case monitor.EventLineChanged:
		o.handleLineChanged(ctx, ev.Index, ev.Text)
	case monitor.EventSignalLost:
		o.handleSignalLost()
	}
}

func (o *Orchestrator) handleSongChanged(ctx context.Context, song player.Song) {
	o.mu.Lock()
	if o.state == StateShuttingDown {
		o.mu.Unlock()
		return
	}
	o.disarmGraceLocked()
	o.epoch++
	o.session = uuid.NewString()
	o.songTitle = song.Title
	o.lineIndex = -1
	o.lineText = ""
	o.state = StateTracking
	session := o.session
	epoch := o.epoch
	o.mu.Unlock()

	o.applyMu.Lock()
	o.display = DisplayState{SongTitle: song.Title, LineIndex: -1}
	o.applyMu.Unlock()

	// In-flight completions from the previous song die on the epoch guard;
	// EnsureSong cancels its pre-warm workers.
	o.cache.EnsureSong(session, song)

	o.logger.Info("tracking song",
		logging.String(logging.FieldSongID, session),
		logging.String(logging.FieldSongTitle, song.Title),
		logging.Int("lines", len(song.Lines)),
		logging.Uint64("epoch", epoch),
		logging.String(logging.FieldEventType, "song_tracking_started"),
	)
	o.notifyAsync(ctx, "song started notification", func(ctx context.Context) error {
		return o.notifier.NotifySongStarted(ctx, song.Title, len(song.Lines))
	})
}

func (o *Orchestrator) handleLineChanged(ctx context.Context, lineIdx int, text string) {
	o.mu.Lock()
	if o.state != StateTracking {
		o.mu.Unlock()
		return
	}
	o.disarmGraceLocked()
	o.lineIndex = lineIdx
	o.lineText = text
	epoch := o.epoch
	title := o.songTitle
	o.mu.Unlock()

	o.taskWG.Add(1)
	go o.completeLine(ctx, epoch, title, lineIdx, text)
}

func (o *Orchestrator) handleSignalLost() {
	o.mu.Lock()
	if o.state != StateTracking || o.graceTimer != nil {
		o.mu.Unlock()
		return
	}
	epoch := o.epoch
	o.graceTimer = time.AfterFunc(o.grace, func() { o.graceExpired(epoch) })
	o.mu.Unlock()

	o.logger.Info("signal lost, grace period started",
		logging.Duration("grace_period", o.grace),
		logging.String(logging.FieldEventType, "grace_period_started"),
	)
}

// graceExpired runs on the grace timer goroutine. The epoch guard drops the
// transition when a new song arrived between arming and firing.
func (o *Orchestrator) graceExpired(epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch || o.state != StateTracking {
		o.mu.Unlock()
		return
	}
	o.graceTimer = nil
	o.state = StateIdle
	title := o.songTitle
	o.songTitle = ""
	o.session = ""
	o.lineIndex = -1
	o.lineText = ""
	ctx := o.ctx
	o.mu.Unlock()

	o.cache.Reset()

	o.applyMu.Lock()
	o.display = DisplayState{}
	o.applyMu.Unlock()

	o.logger.Info("grace period expired, returning to idle",
		logging.String(logging.FieldSongTitle, title),
		logging.String(logging.FieldEventType, "idle"),
	)
	if ctx != nil {
		o.notifyAsync(ctx, "signal lost notification", func(ctx context.Context) error {
			return o.notifier.NotifySignalLost(ctx, title)
		})
	}
}

func (o *Orchestrator) disarmGraceLocked() {
	if o.graceTimer != nil {
		o.graceTimer.Stop()
		o.graceTimer = nil
	}
}

// notifyAsync delivers a notification without blocking the event loop.
func (o *Orchestrator) notifyAsync(ctx context.Context, label string, send func(context.Context) error) {
	o.taskWG.Add(1)
	go func() {
		defer o.taskWG.Done()
		if err := send(ctx); err != nil && ctx.Err() == nil {
			o.logger.Warn("notification delivery failed",
				logging.Error(err),
				logging.String("notification", label),
				logging.String(logging.FieldEventType, "notification_failed"),
			)
		}
	}()
}
