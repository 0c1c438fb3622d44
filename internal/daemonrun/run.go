package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lyriscope/internal/analysis"
	"lyriscope/internal/config"
	"lyriscope/internal/daemon"
	"lyriscope/internal/describer"
	"lyriscope/internal/display"
	"lyriscope/internal/embedding"
	"lyriscope/internal/index"
	"lyriscope/internal/ipc"
	"lyriscope/internal/logging"
	"lyriscope/internal/monitor"
	"lyriscope/internal/notifications"
	"lyriscope/internal/pipeline"
	"lyriscope/internal/player"
	"lyriscope/internal/services/llm"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the lyriscope daemon runtime loop. It blocks until the
// process receives SIGINT/SIGTERM or an IPC stop request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	// Config validation stays credential-free so status and config commands
	// work on a keyless setup; the daemon itself cannot describe anything
	// without a key, so it refuses to start.
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required to run the daemon: set LYRISCOPE_LLM_API_KEY or add it to the config file (create one with 'lyriscope config init')")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lyriscope-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lyriscope.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "lyriscope-*.log", logPath)
	pidPath := filepath.Join(cfg.Paths.LogDir, "lyriscope.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	socketPath := daemon.SocketPath(cfg)
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "IPC server failed to start", "ipc_bind_failed",
			logging.Error(err),
			logging.String("socket", socketPath),
			logging.String(logging.FieldErrorHint, "remove a stale socket file or stop the other daemon instance"))
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	// A bridge that cannot bind its listen address leaves nothing to
	// monitor, so startup failure ends the process.
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon startup failed", "startup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that player.listen_addr is free and valid"))
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
		logger.Info("lyriscope daemon shutting down")
		d.Stop()
	case <-d.Done():
		logger.Info("lyriscope daemon stopped via IPC")
	}
	return nil
}

// buildDaemon wires the bridge, monitor, analysis cache, and pipeline
// from configuration. Missing optional pieces (embedding key, index
// store) degrade the pipeline instead of failing startup.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	bridge := player.NewBridge(cfg, logger)
	mon := monitor.NewMonitor(cfg, bridge, logger)

	settings := cfg.LLMSettings()
	llmClient := llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	},
		llm.WithRetryMaxAttempts(cfg.LLM.RetryAttempts),
		llm.WithRetryBackoff(
			time.Duration(cfg.LLM.RetryBackoffSeconds)*time.Second,
			time.Duration(cfg.LLM.RetryBackoffMaxSeconds)*time.Second,
		),
	)
	desc := describer.New(llmClient, describer.Settings{
		MaxInflight:        cfg.LLM.MaxInflight,
		MinRequestInterval: time.Duration(cfg.LLM.MinRequestIntervalMs) * time.Millisecond,
		PerSongBudget:      cfg.Analysis.PerSongRequestBudget,
	}, logger)
	cache := analysis.NewCache(desc, cfg.Analysis.Workers, logger)

	var encoder embedding.Encoder
	if strings.TrimSpace(cfg.Embedding.APIKey) != "" {
		enc, err := embedding.NewOpenAI(cfg.Embedding.APIKey,
			embedding.WithModel(cfg.Embedding.Model),
			embedding.WithDimensions(cfg.Embedding.Dimensions),
			embedding.WithBaseURL(cfg.Embedding.BaseURL),
		)
		if err != nil {
			logging.WarnWithContext(logger, "embedding encoder unavailable", "embedding_init_failed",
				logging.Error(err),
				logging.Alert("degraded"),
				logging.String(logging.FieldImpact, "image matching disabled, descriptions go to sinks as text"),
				logging.String(logging.FieldErrorHint, "check the embedding API key and model settings"))
		} else {
			encoder = enc
		}
	}

	idx, err := index.Open(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "image index unavailable", "index_open_failed",
			logging.Error(err),
			logging.Alert("degraded"),
			logging.String(logging.FieldImpact, "image matching disabled, descriptions go to sinks as text"),
			logging.String(logging.FieldErrorHint, "run lyriscope index import or check the index settings"))
		idx = index.Unavailable{Reason: err.Error()}
	}

	sinks, err := display.NewSinks(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure display sinks: %w", err)
	}
	sink := display.NewFanout(logger, sinks...)

	orc := pipeline.New(cfg, pipeline.Components{
		Cache:    cache,
		Encoder:  encoder,
		Index:    idx,
		Sink:     sink,
		Notifier: notifications.NewService(cfg),
		Events:   mon.Events(),
	}, logger)

	return daemon.New(cfg, daemon.Components{
		Bridge:       bridge,
		Monitor:      mon,
		Cache:        cache,
		Orchestrator: orc,
		Index:        idx,
	}, logger)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lyriscope.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("listen_addr", cfg.Player.ListenAddr),
		logging.Group("llm",
			logging.String("model", cfg.LLM.Model),
			logging.Int("max_inflight", cfg.LLM.MaxInflight),
			logging.Int("per_song_budget", cfg.Analysis.PerSongRequestBudget)),
		logging.Group("index",
			logging.String("backend", cfg.Index.Backend),
			logging.Int("top_k", cfg.Index.TopK),
			logging.Bool("embedding_key_present", strings.TrimSpace(cfg.Embedding.APIKey) != "")),
		logging.Any("display_targets", cfg.Display.Targets),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
