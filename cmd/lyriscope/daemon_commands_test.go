package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"lyriscope/internal/ipc"
)

func TestCLIStartWhenDaemonAlreadyRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestCLIStatusRendersSections(t *testing.T) {
	env := setupCLITestEnv(t)
	waitForChecks(t, env.socketPath)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	requireContains(t, out, "== System Status ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "== Pipeline ==")
	requireContains(t, out, "Idle (waiting for a song)")
	requireContains(t, out, "== Startup Checks ==")
	requireContains(t, out, "Describer LLM")
	requireContains(t, out, "== Image Index ==")
	requireContains(t, out, "Empty (run `lyriscope index import`)")
}

func TestCLIStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	waitForChecks(t, env.socketPath)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}

	var resp ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("unmarshal status JSON: %v\noutput: %s", err, out)
	}
	if !resp.Running {
		t.Fatal("expected running daemon in JSON status")
	}
	if resp.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", resp.PID)
	}
	if len(resp.Checks) == 0 {
		t.Fatal("expected startup checks in JSON status")
	}
}

func TestCLIStopWhenDaemonNotRunning(t *testing.T) {
	_, configPath := setupCLIConfigEnv(t)
	socket := filepath.Join(t.TempDir(), "missing.sock")

	out, _, err := runCLI(t, []string{"stop"}, socket, configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
