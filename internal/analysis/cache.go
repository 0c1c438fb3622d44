// Package analysis caches visual descriptions for the current song and
// pre-warms them in playback order.
//
// One Cache serves the whole daemon. EnsureSong swaps in a fresh per-song
// mapping keyed by normalized line text and hands every unique line to a
// bounded worker pool. GetOrAwait is the read side used per displayed line:
// an immediate hit, or a bounded wait that falls back to the raw lyric text
// so the display never stalls behind the language model.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lyriscope/internal/describer"
	"lyriscope/internal/logging"
	"lyriscope/internal/player"
	"lyriscope/internal/services"
	"lyriscope/internal/textutil"
)

// Describer resolves one lyric line to a visual description.
type Describer interface {
	Describe(ctx context.Context, req describer.Request) (string, error)
}

// Result is what a caller gets for a line. Fallback marks descriptions that
// are just the raw lyric text (timeout, budget, or exhausted retries).
type Result struct {
	Description string
	Fallback    bool
}

// Stats summarizes cache fill for status reporting.
type Stats struct {
	Session   string
	SongTitle string
	Total     int
	Resolved  int
}

// entry tracks one unique line text within a song. done is closed exactly
// once when the description (or its fallback) is final.
type entry struct {
	key    string
	text   string
	before string
	after  string

	started bool
	done    chan struct{}

	description string
	fallback    bool
}

// Cache coordinates pre-warm workers and per-line reads.
type Cache struct {
	describer Describer
	logger    *slog.Logger
	workers   int

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	session    string
	songTitle  string
	entries    map[string]*entry
	songCtx    context.Context
	songCancel context.CancelFunc
	songWG     *sync.WaitGroup
}

// NewCache builds the cache over a describer. workers bounds pre-warm
// parallelism.
func NewCache(d Describer, workers int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	if workers <= 0 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		describer:  d,
		logger:     logging.NewComponentLogger(logger, "analysis"),
		workers:    workers,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// EnsureSong resets the mapping for a new song session and enqueues every
// unique line for background description in playback order. Work for the
// previous song is canceled; its in-flight results resolve into entries no
// caller reads again.
func (c *Cache) EnsureSong(session string, song player.Song) {
	lines := textutil.CleanLyrics(song.Lines)

	c.mu.Lock()
	if c.songCancel != nil {
		c.songCancel()
	}
	songCtx, cancel := context.WithCancel(c.rootCtx)
	songCtx = services.WithSongID(songCtx, session)
	songCtx = services.WithSongTitle(songCtx, song.Title)

	c.session = session
	c.songTitle = song.Title
	c.songCtx = songCtx
	c.songCancel = cancel
	c.entries = make(map[string]*entry, len(lines))

	queue := make(chan *entry, len(lines))
	for i, line := range lines {
		key := textutil.NormalizeLine(line)
		if key == "" {
			continue
		}
		if _, exists := c.entries[key]; exists {
			continue
		}
		e := &entry{
			key:  key,
			text: line,
			done: make(chan struct{}),
		}
		if i > 0 {
			e.before = lines[i-1]
		}
		if i+1 < len(lines) {
			e.after = lines[i+1]
		}
		c.entries[key] = e
		queue <- e
	}
	close(queue)

	wg := &sync.WaitGroup{}
	c.songWG = wg
	title := song.Title
	unique := len(c.entries)
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go c.prewarmWorker(songCtx, wg, session, title, queue)
	}
	c.mu.Unlock()

	c.logger.Info("song analysis scheduled",
		logging.String(logging.FieldSongID, session),
		logging.String(logging.FieldSongTitle, song.Title),
		logging.Int("lines", len(lines)),
		logging.Int("unique", unique))
}

// Reset discards the current song's mapping and cancels outstanding work.
func (c *Cache) Reset() {
	c.mu.Lock()
	if c.songCancel != nil {
		c.songCancel()
		c.songCancel = nil
	}
	c.session = ""
	c.songTitle = ""
	c.entries = nil
	c.mu.Unlock()
}

// Stop cancels all work. The cache is unusable afterwards.
func (c *Cache) Stop() {
	c.Reset()
	c.rootCancel()
	c.mu.Lock()
	wg := c.songWG
	c.mu.Unlock()
	if wg != nil {
		wg.Wait()
	}
}

func (c *Cache) prewarmWorker(ctx context.Context, wg *sync.WaitGroup, session, title string, queue <-chan *entry) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-queue:
			if !ok {
				return
			}
			if !c.claim(e) {
				continue
			}
			c.resolve(ctx, session, title, e)
		}
	}
}

// claim marks an entry as having its single resolver. The completion path
// may have claimed it already to jump the queue.
func (c *Cache) claim(e *entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.started {
		return false
	}
	e.started = true
	return true
}

// resolve runs the external describe call and finalizes the entry. Failures
// of any class finalize with the raw lyric text; the entry is reused without
// another model call until the song is invalidated.
func (c *Cache) resolve(ctx context.Context, session, title string, e *entry) {
	description, err := c.describer.Describe(ctx, describer.Request{
		SessionID: session,
		SongTitle: title,
		Line:      e.text,
		Before:    e.before,
		After:     e.after,
	})
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(c.logger, "line description failed", "describe_failed",
				logging.String(logging.FieldSongID, session),
				logging.String("line", e.text),
				logging.Error(err),
				logging.String(logging.FieldImpact, "line shows raw lyric text"))
		}
		c.finish(e, e.text, true)
		return
	}
	c.finish(e, description, false)
}

func (c *Cache) finish(e *entry, description string, fallback bool) {
	e.description = description
	e.fallback = fallback
	close(e.done)
}

// GetOrAwait returns the description for a line, waiting up to timeout for
// an unresolved entry before falling back to the raw text. The entry keeps
// resolving in the background; Await observes the upgrade.
func (c *Cache) GetOrAwait(ctx context.Context, text string, timeout time.Duration) Result {
	cleaned := textutil.CleanLine(text)
	key := textutil.NormalizeLine(cleaned)
	if key == "" {
		return Result{}
	}

	e, ok := c.lookupOrStart(cleaned, key)
	if !ok {
		return Result{Description: cleaned, Fallback: true}
	}

	select {
	case <-e.done:
		return Result{Description: e.description, Fallback: e.fallback}
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-e.done:
		return Result{Description: e.description, Fallback: e.fallback}
	case <-timer.C:
		return Result{Description: cleaned, Fallback: true}
	case <-ctx.Done():
		return Result{Description: cleaned, Fallback: true}
	}
}

// Await blocks until the line's entry resolves. It reports an error only
// when ctx ends first or no song is active.
func (c *Cache) Await(ctx context.Context, text string) (Result, error) {
	cleaned := textutil.CleanLine(text)
	key := textutil.NormalizeLine(cleaned)
	if key == "" {
		return Result{}, nil
	}

	e, ok := c.lookupOrStart(cleaned, key)
	if !ok {
		return Result{}, services.Wrap(services.ErrNotFound, "analysis", "await", "no active song", nil)
	}

	select {
	case <-e.done:
		return Result{Description: e.description, Fallback: e.fallback}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// lookupOrStart finds the entry for key, creating and starting one for
// texts outside the song's known lines. A miss while an enqueued entry is
// still waiting on the pool claims it immediately so the visible line jumps
// the pre-warm queue. Returns false when no song is active.
func (c *Cache) lookupOrStart(cleaned, key string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		return nil, false
	}

	session := c.session
	title := c.songTitle
	songCtx := c.songCtx

	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key, text: cleaned, done: make(chan struct{}), started: true}
		c.entries[key] = e
		go c.resolve(songCtx, session, title, e)
		return e, true
	}
	if !e.started {
		e.started = true
		go c.resolve(songCtx, session, title, e)
	}
	return e, true
}

// Stats reports fill for the active song.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Session: c.session, SongTitle: c.songTitle, Total: len(c.entries)}
	for _, e := range c.entries {
		select {
		case <-e.done:
			stats.Resolved++
		default:
		}
	}
	return stats
}
