package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

func TestConsoleFormatPrefixesComponentAndFlattensAttrs(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	component := logging.NewComponentLogger(logger, "monitor")
	component.Info("line changed", logging.Int(logging.FieldLineIndex, 4), logging.String("text", "hello world"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.Contains(line, " INFO monitor: line changed") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "line_index=4") {
		t.Fatalf("expected flattened line_index attr: %q", line)
	}
	if !strings.Contains(line, `text="hello world"`) {
		t.Fatalf("expected quoted text attr: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be hoisted out of attrs: %q", line)
	}
}

func TestConsoleOmitsCallerForInfo(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestJSONFormatEmitsLowercaseLevelAndTS(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "out.json")

	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Warn("cache miss", logging.String(logging.FieldSongID, "abc"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, content)
	}
	if entry["level"] != "warn" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
	if entry["msg"] != "cache miss" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["song_id"] != "abc" {
		t.Fatalf("unexpected song_id: %v", entry["song_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestLevelGating(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "gated.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "warn",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "suppressed") {
		t.Fatalf("info line should be gated: %q", content)
	}
	if !strings.Contains(string(content), "kept") {
		t.Fatalf("warn line missing: %q", content)
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "logfmt"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsPipelineFields(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "ctx.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithSongID(context.Background(), "song-1")
	ctx = services.WithEpoch(ctx, 3)
	ctx = services.WithLineIndex(ctx, 7)
	ctx = services.WithRequestID(ctx, "req-9")

	logging.WithContext(ctx, logger).Info("resolved")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, want := range []string{"song_id=song-1", "epoch=3", "line_index=7", "correlation_id=req-9"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %q", want, line)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("nothing happens")
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("nop logger should report disabled")
	}
}

func TestCleanupOldLogsKeepsActiveFile(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "lyriscope-old.log")
	keepPath := filepath.Join(dir, "lyriscope-keep.log")
	for _, path := range []string{oldPath, keepPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -10)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, dir, "lyriscope-*.log", keepPath)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be pruned", oldPath)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("excluded file should remain: %v", err)
	}
}
