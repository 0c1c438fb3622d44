package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lyriscope/internal/analysis"
	"lyriscope/internal/config"
	"lyriscope/internal/describer"
	"lyriscope/internal/display"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
	"lyriscope/internal/monitor"
	"lyriscope/internal/player"
)

type stubDescriber struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	descs map[string]string
}

func newStubDescriber() *stubDescriber {
	return &stubDescriber{
		gates: make(map[string]chan struct{}),
		descs: make(map[string]string),
	}
}

func (d *stubDescriber) Describe(ctx context.Context, req describer.Request) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req.Line)
	gate := d.gates[req.Line]
	desc, ok := d.descs[req.Line]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if !ok {
		desc = "described " + req.Line
	}
	return desc, nil
}

func (d *stubDescriber) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// textVector encodes a description's bytes so stubIndex can invert it.
func textVector(text string) []float32 {
	vec := make([]float32, len(text))
	for i, b := range []byte(text) {
		vec[i] = float32(b)
	}
	return vec
}

func vectorText(vec []float32) string {
	buf := make([]byte, len(vec))
	for i, f := range vec {
		buf[i] = byte(f)
	}
	return string(buf)
}

type stubEncoder struct{}

func (stubEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	return textVector(text), nil
}

func (stubEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = textVector(text)
	}
	return out, nil
}

func (stubEncoder) Dimension() int { return 0 }

type stubIndex struct {
	mu      sync.Mutex
	matches map[string]index.Match
	err     error
}

func (s *stubIndex) Search(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if match, ok := s.matches[vectorText(vector)]; ok {
		return []index.Match{match}, nil
	}
	return nil, nil
}

func (s *stubIndex) Info(ctx context.Context) (index.Info, error) {
	return index.Info{Backend: "stub"}, nil
}

func (s *stubIndex) Close() error { return nil }

type recordingSink struct {
	applied chan display.Update
}

func newRecordingSink() *recordingSink {
	return &recordingSink{applied: make(chan display.Update, 32)}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Apply(ctx context.Context, update display.Update) error {
	s.applied <- update
	return nil
}

type stubNotifier struct {
	mu         sync.Mutex
	songs      []string
	signalLost []string
}

func (n *stubNotifier) NotifySongStarted(ctx context.Context, songTitle string, lineCount int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.songs = append(n.songs, songTitle)
	return nil
}

func (n *stubNotifier) NotifySignalLost(ctx context.Context, songTitle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signalLost = append(n.signalLost, songTitle)
	return nil
}

func (n *stubNotifier) NotifyError(ctx context.Context, err error, contextLabel string) error {
	return nil
}

func (n *stubNotifier) TestNotification(ctx context.Context) error { return nil }

func (n *stubNotifier) signalLostCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.signalLost)
}

type harness struct {
	orc      *Orchestrator
	events   chan monitor.Event
	sink     *recordingSink
	notifier *stubNotifier
	desc     *stubDescriber
	cache    *analysis.Cache
	idx      *stubIndex
}

func newHarness(t *testing.T, configure func(cfg *config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Analysis.LineWaitTimeoutMs = 5000
	cfg.Index.TopK = 1
	if configure != nil {
		configure(&cfg)
	}

	desc := newStubDescriber()
	cache := analysis.NewCache(desc, 2, logging.NewNop())
	t.Cleanup(cache.Stop)

	events := make(chan monitor.Event, 16)
	sink := newRecordingSink()
	notifier := &stubNotifier{}
	idx := &stubIndex{matches: make(map[string]index.Match)}

	orc := New(&cfg, Components{
		Cache:    cache,
		Encoder:  stubEncoder{},
		Index:    idx,
		Sink:     sink,
		Notifier: notifier,
		Events:   events,
	}, logging.NewNop())

	return &harness{orc: orc, events: events, sink: sink, notifier: notifier, desc: desc, cache: cache, idx: idx}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.orc.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	t.Cleanup(h.orc.Stop)
}

func (h *harness) songChanged(title string, lines ...string) {
	h.events <- monitor.Event{Kind: monitor.EventSongChanged, Song: player.Song{Title: title, Lines: lines}}
}

func (h *harness) lineChanged(lineIdx int, text string) {
	h.events <- monitor.Event{Kind: monitor.EventLineChanged, Index: lineIdx, Text: text}
}

func (h *harness) signalLost() {
	h.events <- monitor.Event{Kind: monitor.EventSignalLost}
}

func waitUpdate(t *testing.T, sink *recordingSink) display.Update {
	t.Helper()
	select {
	case update := <-sink.applied:
		return update
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for display update")
		return display.Update{}
	}
}

func expectNoUpdate(t *testing.T, sink *recordingSink, within time.Duration) {
	t.Helper()
	select {
	case update := <-sink.applied:
		t.Fatalf("unexpected display update: %+v", update)
	case <-time.After(within):
	}
}

func TestSongChangeDrivesPrewarmAndLineLookup(t *testing.T) {
	h := newHarness(t, nil)
	h.desc.descs["hello"] = "a dark skyline"
	h.desc.descs["world"] = "spinning globe"
	h.idx.matches["a dark skyline"] = index.Match{ID: "42", Path: "/library/item_42.png", Score: 0.91}
	h.start(t)

	h.songChanged("Test Song A", "hello", "world")
	h.lineChanged(0, "hello")

	update := waitUpdate(t, h.sink)
	if update.SongTitle != "Test Song A" {
		t.Fatalf("expected song title in update, got %q", update.SongTitle)
	}
	if update.LineIndex != 0 || update.LyricText != "hello" {
		t.Fatalf("unexpected line in update: %+v", update)
	}
	if update.Description != "a dark skyline" {
		t.Fatalf("expected described line, got %q", update.Description)
	}
	if update.ImagePath != "/library/item_42.png" {
		t.Fatalf("expected best index match, got %q", update.ImagePath)
	}
	if update.Score != 0.91 || update.Fallback {
		t.Fatalf("unexpected match metadata: %+v", update)
	}

	// Both unique lines end up described without further line events.
	deadline := time.Now().Add(2 * time.Second)
	for h.desc.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected pre-warm to describe both lines, got %d calls", h.desc.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}

	status := h.orc.Status()
	if status.State != StateTracking || status.SongTitle != "Test Song A" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Display.ImagePath != "/library/item_42.png" {
		t.Fatalf("status display not updated: %+v", status.Display)
	}
}

func TestLateCompletionOfOldLineIsDiscarded(t *testing.T) {
	h := newHarness(t, nil)
	gate := make(chan struct{})
	h.desc.gates["first line"] = gate
	h.desc.descs["first line"] = "slow painting"
	h.desc.descs["second line"] = "quick sketch"
	h.idx.matches["slow painting"] = index.Match{ID: "1", Path: "/library/slow.png", Score: 0.8}
	h.idx.matches["quick sketch"] = index.Match{ID: "2", Path: "/library/quick.png", Score: 0.9}
	h.start(t)

	h.songChanged("Race", "first line", "second line")
	h.lineChanged(0, "first line")
	h.lineChanged(1, "second line")

	update := waitUpdate(t, h.sink)
	if update.LineIndex != 1 || update.ImagePath != "/library/quick.png" {
		t.Fatalf("expected the newer line to apply first, got %+v", update)
	}

	// The old line's describe finishes now; its completion must be dropped.
	close(gate)
	expectNoUpdate(t, h.sink, 300*time.Millisecond)

	status := h.orc.Status()
	if status.Display.LineIndex != 1 || status.Display.ImagePath != "/library/quick.png" {
		t.Fatalf("display regressed to a stale line: %+v", status.Display)
	}
}

func TestFallbackUpgradesSilentlyWhenDescriptionArrives(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Analysis.LineWaitTimeoutMs = 40
	})
	gate := make(chan struct{})
	h.desc.gates["slow sunrise"] = gate
	h.desc.descs["slow sunrise"] = "molten horizon"
	h.idx.matches["molten horizon"] = index.Match{ID: "7", Path: "/library/horizon.png", Score: 0.95}
	h.start(t)

	h.songChanged("Patience", "slow sunrise")
	h.lineChanged(0, "slow sunrise")

	first := waitUpdate(t, h.sink)
	if !first.Fallback {
		t.Fatalf("expected raw-text fallback first, got %+v", first)
	}
	if first.Description != "slow sunrise" {
		t.Fatalf("fallback should carry the raw line, got %q", first.Description)
	}
	if first.ImagePath != "" {
		t.Fatalf("fallback had no match registered, got image %q", first.ImagePath)
	}

	close(gate)
	second := waitUpdate(t, h.sink)
	if second.Fallback {
		t.Fatalf("expected upgraded update, got fallback: %+v", second)
	}
	if second.Description != "molten horizon" || second.ImagePath != "/library/horizon.png" {
		t.Fatalf("upgrade did not carry the real description: %+v", second)
	}
	if second.LineIndex != 0 {
		t.Fatalf("upgrade applied to wrong line: %+v", second)
	}
}

func TestSongChangeInvalidatesInflightCompletions(t *testing.T) {
	h := newHarness(t, nil)
	gate := make(chan struct{})
	h.desc.gates["alpha"] = gate
	h.desc.descs["beta"] = "fresh meadow"
	h.idx.matches["fresh meadow"] = index.Match{ID: "3", Path: "/library/meadow.png", Score: 0.85}
	h.start(t)

	h.songChanged("Song A", "alpha")
	h.lineChanged(0, "alpha")

	// Wait until the blocked describe is actually in flight.
	deadline := time.Now().Add(2 * time.Second)
	for h.desc.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("describe for song A never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.songChanged("Song B", "beta")
	h.lineChanged(0, "beta")

	update := waitUpdate(t, h.sink)
	if update.SongTitle != "Song B" || update.ImagePath != "/library/meadow.png" {
		t.Fatalf("expected song B update first, got %+v", update)
	}

	close(gate)
	expectNoUpdate(t, h.sink, 300*time.Millisecond)

	status := h.orc.Status()
	if status.SongTitle != "Song B" || status.Display.SongTitle != "Song B" {
		t.Fatalf("stale song leaked into status: %+v", status)
	}
}

func TestSignalLostGraceExpiryReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.orc.grace = 40 * time.Millisecond
	h.desc.descs["hum"] = "warm static"
	h.start(t)

	h.songChanged("Fading", "hum")
	h.lineChanged(0, "hum")
	waitUpdate(t, h.sink)

	h.signalLost()

	deadline := time.Now().Add(2 * time.Second)
	for h.orc.Status().State != StateIdle {
		if time.Now().After(deadline) {
			t.Fatalf("orchestrator never returned to idle, status %+v", h.orc.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}

	status := h.orc.Status()
	if status.SongTitle != "" || status.Display.SongTitle != "" {
		t.Fatalf("idle status still carries song state: %+v", status)
	}
	if status.CacheTotal != 0 {
		t.Fatalf("cache not reset on idle: %+v", status)
	}

	deadline = time.Now().Add(2 * time.Second)
	for h.notifier.signalLostCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("signal lost notification never sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLineActivityDisarmsGraceTimer(t *testing.T) {
	h := newHarness(t, nil)
	h.orc.grace = 60 * time.Millisecond
	h.desc.descs["still here"] = "steady flame"
	h.start(t)

	h.songChanged("Recovery", "still here")
	h.signalLost()
	h.lineChanged(0, "still here")
	waitUpdate(t, h.sink)

	time.Sleep(120 * time.Millisecond)
	status := h.orc.Status()
	if status.State != StateTracking {
		t.Fatalf("grace timer fired despite line activity, status %+v", status)
	}
	if h.notifier.signalLostCount() != 0 {
		t.Fatalf("unexpected signal lost notification")
	}
}

func TestEmptyLineClearsLyricAndKeepsImage(t *testing.T) {
	h := newHarness(t, nil)
	h.desc.descs["verse"] = "red lantern"
	h.idx.matches["red lantern"] = index.Match{ID: "9", Path: "/library/lantern.png", Score: 0.88}
	h.start(t)

	h.songChanged("Instrumental Break", "verse", "")
	h.lineChanged(0, "verse")
	first := waitUpdate(t, h.sink)
	if first.ImagePath != "/library/lantern.png" {
		t.Fatalf("expected image for verse, got %+v", first)
	}

	h.lineChanged(1, "")
	second := waitUpdate(t, h.sink)
	if second.LyricText != "" || second.Description != "" {
		t.Fatalf("empty line should clear the lyric, got %+v", second)
	}
	if second.ImagePath != "/library/lantern.png" {
		t.Fatalf("empty line should keep the previous image, got %q", second.ImagePath)
	}
	if h.desc.callCount() > 1 {
		t.Fatalf("empty line must not reach the describer, %d calls", h.desc.callCount())
	}
}

func TestLineEventsIgnoredWhileIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)

	h.lineChanged(0, "orphan line")
	expectNoUpdate(t, h.sink, 150*time.Millisecond)

	if got := h.desc.callCount(); got != 0 {
		t.Fatalf("idle orchestrator reached the describer %d times", got)
	}
	if status := h.orc.Status(); status.State != StateIdle {
		t.Fatalf("expected idle state, got %+v", status)
	}
}

func TestLookupFailureDegradesToTextOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.desc.descs["gritty"] = "broken glass"
	h.idx.err = errors.New("backend gone")
	h.start(t)

	h.songChanged("Degraded", "gritty")
	h.lineChanged(0, "gritty")

	update := waitUpdate(t, h.sink)
	if update.Description != "broken glass" {
		t.Fatalf("description should survive lookup failure, got %+v", update)
	}
	if update.ImagePath != "" {
		t.Fatalf("expected no image on lookup failure, got %q", update.ImagePath)
	}

	status := h.orc.Status()
	if status.LastError == "" {
		t.Fatalf("lookup failure should surface in status")
	}
}
