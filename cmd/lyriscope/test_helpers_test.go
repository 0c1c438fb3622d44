package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lyriscope/internal/analysis"
	"lyriscope/internal/config"
	"lyriscope/internal/daemon"
	"lyriscope/internal/describer"
	"lyriscope/internal/ipc"
	"lyriscope/internal/logging"
	"lyriscope/internal/monitor"
	"lyriscope/internal/pipeline"
	"lyriscope/internal/player"
	"lyriscope/internal/testsupport"
)

type stubDescriber struct{}

func (stubDescriber) Describe(context.Context, describer.Request) (string, error) {
	return "a lantern over calm water", nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

// setupCLIConfigEnv isolates HOME and writes a loadable config file without
// starting a daemon. Commands that never touch the IPC socket use this.
func setupCLIConfigEnv(t *testing.T) (*config.Config, string) {
	t.Helper()

	homeDir := filepath.Join(t.TempDir(), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(homeDir, ".config", "lyriscope", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	// No key keeps the LLM startup check local and fast.
	cfg := testsupport.NewConfig(t, testsupport.WithLLMKey(""))

	configPath := filepath.Join(homeDir, ".config", "lyriscope", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	bridge := player.NewBridge(cfg, logger)
	mon := monitor.NewMonitor(cfg, bridge, logger)
	cache := analysis.NewCache(stubDescriber{}, 1, logger)
	orc := pipeline.New(cfg, pipeline.Components{Cache: cache, Events: mon.Events()}, logger)

	d, err := daemon.New(cfg, daemon.Components{
		Bridge:       bridge,
		Monitor:      mon,
		Cache:        cache,
		Orchestrator: orc,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
index_path = %q

[player]
listen_addr = %q

[llm]
api_key = "test-key"
base_url = %q

[embedding]
api_key = "test-key"
base_url = %q
dimensions = %d

[index]
backend = %q

[display]
targets = ["log"]
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.IndexPath,
		cfg.Player.ListenAddr,
		cfg.LLM.BaseURL,
		cfg.Embedding.BaseURL,
		cfg.Embedding.Dimensions,
		cfg.Index.Backend,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

// waitForChecks blocks until the daemon publishes its startup check results,
// so status output includes them deterministically.
func waitForChecks(t *testing.T, socket string) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		client, err := ipc.Dial(socket)
		if err != nil {
			return false
		}
		defer client.Close()
		status, err := client.Status()
		return err == nil && len(status.Checks) > 0
	})
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
