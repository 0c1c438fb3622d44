package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"lyriscope/internal/analysis"
	"lyriscope/internal/config"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
	"lyriscope/internal/monitor"
	"lyriscope/internal/notifications"
	"lyriscope/internal/pipeline"
	"lyriscope/internal/player"
	"lyriscope/internal/preflight"
)

// Components carries the constructed pipeline parts the daemon coordinates.
// Bridge, Monitor, Cache, and Orchestrator are required; Index is optional
// and only consulted for status reporting.
type Components struct {
	Bridge       *player.Bridge
	Monitor      *monitor.Monitor
	Cache        *analysis.Cache
	Orchestrator *pipeline.Orchestrator
	Index        index.Index
}

// Daemon coordinates the lyric pipeline services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	parts   Components
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once

	checksMu sync.Mutex
	checks   []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	LogPath      string
	BridgeAddr   string
	Pipeline     pipeline.Status
	Checks       []preflight.Result
	Index        index.Info
}

// SocketPath returns the IPC socket location for the given config.
func SocketPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "lyriscope.sock")
}

// New constructs a daemon over pre-built pipeline components.
func New(cfg *config.Config, parts Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if parts.Bridge == nil || parts.Monitor == nil || parts.Cache == nil || parts.Orchestrator == nil {
		return nil, errors.New("daemon requires bridge, monitor, cache, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "lyriscoped.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		parts:    parts,
		logPath:  filepath.Join(cfg.Paths.LogDir, "lyriscope.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		done:     make(chan struct{}),
	}, nil
}

// Start acquires the daemon lock and brings up the bridge, pipeline, and
// monitor in dependency order. A bridge bind failure is fatal; readiness
// checks run in the background and are logged and surfaced through Status.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lyriscope daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.parts.Bridge.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start player bridge: %w", err)
	}
	if err := d.parts.Orchestrator.Start(d.ctx); err != nil {
		d.stopBridge()
		d.abortStart()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.parts.Monitor.Start(d.ctx); err != nil {
		d.parts.Orchestrator.Stop()
		d.stopBridge()
		d.abortStart()
		return fmt.Errorf("start monitor: %w", err)
	}

	checksCtx := d.ctx
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runStartupChecks(checksCtx)
	}()

	d.running.Store(true)
	d.logger.Info("lyriscope daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bridge_addr", d.parts.Bridge.Addr()))
	return nil
}

// Stop stops the monitor, pipeline, and bridge and releases the daemon lock.
// The swap guard makes concurrent Stop calls (signal plus IPC stop) collapse
// into one shutdown.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.parts.Monitor.Stop()
	d.parts.Orchestrator.Stop()
	d.parts.Cache.Stop()
	d.stopBridge()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.logger.Info("lyriscope daemon stopped")
	d.doneOnce.Do(func() { close(d.done) })
}

// Done returns a channel closed once the daemon has fully stopped.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.parts.Index != nil {
		return d.parts.Index.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		BridgeAddr:   d.parts.Bridge.Addr(),
		Pipeline:     d.parts.Orchestrator.Status(),
	}
	d.checksMu.Lock()
	st.Checks = append([]preflight.Result(nil), d.checks...)
	d.checksMu.Unlock()
	if d.parts.Index != nil {
		infoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		info, err := d.parts.Index.Info(infoCtx)
		cancel()
		if err != nil {
			d.logger.Debug("index info unavailable", logging.Error(err))
		}
		st.Index = info
	}
	return st
}

// runStartupChecks reports subsystem readiness without blocking startup.
// Failures are warnings: the pipeline degrades per subsystem instead of
// refusing to run.
func (d *Daemon) runStartupChecks(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg)
	if ctx.Err() != nil {
		return
	}
	d.checksMu.Lock()
	d.checks = results
	d.checksMu.Unlock()

	for _, r := range results {
		if r.Passed {
			d.logger.Info("startup check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "startup check failed", "startup_check_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "the affected subsystem degrades until fixed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"))
	}
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

func (d *Daemon) stopBridge() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.parts.Bridge.Stop(stopCtx); err != nil {
		d.logger.Warn("player bridge shutdown failed", logging.Error(err))
	}
}
