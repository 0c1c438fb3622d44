package player

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lyriscope/internal/config"
	"lyriscope/internal/logging"
	"lyriscope/internal/services"
	"lyriscope/internal/textutil"
)

// stateMessage is the JSON payload the browser userscript pushes over the
// websocket whenever the player view changes.
type stateMessage struct {
	Title       string   `json:"title"`
	Lines       []string `json:"lines"`
	ActiveIndex int      `json:"activeIndex"`
	ActiveText  string   `json:"activeText"`
}

type snapshot struct {
	song       Song
	active     ActiveLine
	receivedAt time.Time
}

// Bridge hosts the websocket endpoint the userscript pushes player state to
// and serves the latest snapshot through the Source interface. A snapshot
// older than the configured freshness window reads as a failed read.
type Bridge struct {
	addr       string
	path       string
	staleAfter time.Duration
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	now        func() time.Time

	mu       sync.Mutex
	running  bool
	listener net.Listener
	server   *http.Server
	snapshot *snapshot
}

var _ Source = (*Bridge)(nil)

// NewBridge constructs a bridge from the player configuration section.
func NewBridge(cfg *config.Config, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	staleAfter := time.Duration(cfg.Player.StaleAfterSeconds) * time.Second
	if staleAfter <= 0 {
		staleAfter = 2 * time.Second
	}
	return &Bridge{
		addr:       cfg.Player.ListenAddr,
		path:       cfg.Player.Path,
		staleAfter: staleAfter,
		logger:     logging.NewComponentLogger(logger, "player-bridge"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Start binds the bridge listener and begins accepting userscript
// connections. A bind failure is fatal: without the bridge there is no player
// signal to monitor.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return services.Wrap(services.ErrValidation, "player", "start", "bridge already running", nil)
	}

	listener, err := net.Listen("tcp", b.addr)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "player", "start", "bind bridge listener "+b.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(b.path, b.handleWS)

	b.listener = listener
	b.server = &http.Server{Handler: mux}
	b.running = true

	go func() {
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			b.logger.Error("bridge server stopped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "bridge_serve_failed"),
			)
		}
	}()

	b.logger.Info("player bridge listening",
		logging.String("addr", listener.Addr().String()),
		logging.String("path", b.path),
		logging.String(logging.FieldEventType, "bridge_started"),
	)
	return nil
}

// Stop shuts the bridge listener down and drops open connections.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	server := b.server
	b.server = nil
	b.listener = nil
	b.running = false
	b.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "player", "stop", "shutdown bridge server", err)
	}
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// CurrentSong returns the song from the latest fresh snapshot.
func (b *Bridge) CurrentSong(ctx context.Context) (Song, error) {
	snap, err := b.freshSnapshot()
	if err != nil {
		return Song{}, err
	}
	if snap.song.Title == "" {
		return Song{}, ErrNoSong
	}
	lines := make([]string, len(snap.song.Lines))
	copy(lines, snap.song.Lines)
	return Song{Title: snap.song.Title, Lines: lines}, nil
}

// ActiveLine returns the highlighted line from the latest fresh snapshot.
func (b *Bridge) ActiveLine(ctx context.Context) (ActiveLine, error) {
	snap, err := b.freshSnapshot()
	if err != nil {
		return ActiveLine{Index: -1}, err
	}
	return snap.active, nil
}

func (b *Bridge) freshSnapshot() (snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return snapshot{}, ErrNoSnapshot
	}
	if b.now().Sub(b.snapshot.receivedAt) > b.staleAfter {
		return snapshot{}, ErrStale
	}
	return *b.snapshot, nil
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	b.logger.Info("userscript connected",
		logging.String("remote", remote),
		logging.String(logging.FieldEventType, "bridge_client_connected"),
	)

	for {
		var msg stateMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("userscript read failed", logging.Error(err))
			}
			break
		}
		b.store(msg)
	}

	b.logger.Info("userscript disconnected",
		logging.String("remote", remote),
		logging.String(logging.FieldEventType, "bridge_client_disconnected"),
	)
}

func (b *Bridge) store(msg stateMessage) {
	song, active := reduceState(msg)
	b.mu.Lock()
	b.snapshot = &snapshot{
		song:       song,
		active:     active,
		receivedAt: b.now(),
	}
	b.mu.Unlock()
}

// reduceState cleans the pushed lines and maps the active index into the
// cleaned list. Lines that clean to empty are dropped; an active line that
// cleans to empty reads as no highlighted line.
func reduceState(msg stateMessage) (Song, ActiveLine) {
	lines := make([]string, 0, len(msg.Lines))
	active := ActiveLine{Index: -1}
	for i, raw := range msg.Lines {
		cleaned := textutil.CleanLine(raw)
		if cleaned == "" {
			continue
		}
		if i == msg.ActiveIndex {
			active = ActiveLine{Index: len(lines), Text: cleaned}
		}
		lines = append(lines, cleaned)
	}
	if active.Index < 0 && msg.ActiveText != "" {
		// Index drifted or was omitted; recover by matching the pushed text.
		cleaned := textutil.CleanLine(msg.ActiveText)
		for i, line := range lines {
			if line == cleaned {
				active = ActiveLine{Index: i, Text: line}
				break
			}
		}
	}
	return Song{Title: strings.TrimSpace(msg.Title), Lines: lines}, active
}
