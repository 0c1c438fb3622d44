package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lyriscope/internal/config"
	"lyriscope/internal/logging"
)

func startTestBridge(t *testing.T) *Bridge {
	t.Helper()
	cfg := config.Default()
	cfg.Player.ListenAddr = "127.0.0.1:0"
	bridge := NewBridge(&cfg, logging.NewNop())
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bridge.Stop(ctx)
	})
	return bridge
}

func dialBridge(t *testing.T, bridge *Bridge) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+bridge.Addr()+"/player", nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSong(t *testing.T, bridge *Bridge) Song {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		song, err := bridge.CurrentSong(context.Background())
		if err == nil {
			return song
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for snapshot")
	return Song{}
}

func TestBridgeServesPushedState(t *testing.T) {
	bridge := startTestBridge(t)
	conn := dialBridge(t, bridge)

	push := stateMessage{
		Title:       "Static Dreams",
		Lines:       []string{"♪ Hello darkness ♪", "", "my old friend", "♪"},
		ActiveIndex: 2,
	}
	if err := conn.WriteJSON(push); err != nil {
		t.Fatalf("write state: %v", err)
	}

	song := waitForSong(t, bridge)
	if song.Title != "Static Dreams" {
		t.Fatalf("unexpected title %q", song.Title)
	}
	if len(song.Lines) != 2 || song.Lines[0] != "Hello darkness" || song.Lines[1] != "my old friend" {
		t.Fatalf("unexpected lines %v", song.Lines)
	}

	active, err := bridge.ActiveLine(context.Background())
	if err != nil {
		t.Fatalf("ActiveLine: %v", err)
	}
	if active.Index != 1 || active.Text != "my old friend" {
		t.Fatalf("unexpected active line %+v", active)
	}
}

func TestBridgeNoSnapshot(t *testing.T) {
	bridge := startTestBridge(t)
	if _, err := bridge.CurrentSong(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if _, err := bridge.ActiveLine(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestBridgeStaleSnapshot(t *testing.T) {
	bridge := startTestBridge(t)
	conn := dialBridge(t, bridge)

	if err := conn.WriteJSON(stateMessage{Title: "Static Dreams", Lines: []string{"one"}, ActiveIndex: 0}); err != nil {
		t.Fatalf("write state: %v", err)
	}
	waitForSong(t, bridge)

	bridge.mu.Lock()
	bridge.now = func() time.Time { return time.Now().Add(time.Minute) }
	bridge.mu.Unlock()

	if _, err := bridge.CurrentSong(context.Background()); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestBridgeEmptyTitleIsNoSong(t *testing.T) {
	bridge := startTestBridge(t)
	conn := dialBridge(t, bridge)

	if err := conn.WriteJSON(stateMessage{Title: "", Lines: []string{"one"}, ActiveIndex: 0}); err != nil {
		t.Fatalf("write state: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err := bridge.CurrentSong(context.Background())
		if errors.Is(err, ErrNoSong) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected ErrNoSong")
}

func TestReduceStateMapsActiveIndexAroundDroppedLines(t *testing.T) {
	song, active := reduceState(stateMessage{
		Title:       "Demo",
		Lines:       []string{"♪", "first", "", "second", "third"},
		ActiveIndex: 3,
	})
	if len(song.Lines) != 3 {
		t.Fatalf("unexpected lines %v", song.Lines)
	}
	if active.Index != 1 || active.Text != "second" {
		t.Fatalf("unexpected active %+v", active)
	}
}

func TestReduceStateNoActiveLine(t *testing.T) {
	_, active := reduceState(stateMessage{
		Title:       "Demo",
		Lines:       []string{"first", "second"},
		ActiveIndex: -1,
	})
	if !active.None() {
		t.Fatalf("expected no active line, got %+v", active)
	}
}

func TestReduceStateActiveTextFallback(t *testing.T) {
	_, active := reduceState(stateMessage{
		Title:       "Demo",
		Lines:       []string{"first", "second"},
		ActiveIndex: 9,
		ActiveText:  "second",
	})
	if active.Index != 1 || active.Text != "second" {
		t.Fatalf("expected fallback match, got %+v", active)
	}
}

func TestReduceStateActiveLineCleansToEmpty(t *testing.T) {
	_, active := reduceState(stateMessage{
		Title:       "Demo",
		Lines:       []string{"first", "♪"},
		ActiveIndex: 1,
	})
	if !active.None() {
		t.Fatalf("expected no active line when it cleans empty, got %+v", active)
	}
}
