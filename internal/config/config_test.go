package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lyriscope/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("HOME-based path expansion test")
	}
	t.Setenv("LYRISCOPE_LLM_API_KEY", "llm-key")
	t.Setenv("LYRISCOPE_EMBEDDING_API_KEY", "embed-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lyriscope")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.IndexPath != filepath.Join(wantData, "index.db") {
		t.Fatalf("unexpected index path: %q", cfg.Paths.IndexPath)
	}
	if cfg.LLM.APIKey != "llm-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Embedding.APIKey != "embed-key" {
		t.Fatalf("expected embedding key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Player.ListenAddr != "127.0.0.1:9876" {
		t.Fatalf("unexpected player bind: %q", cfg.Player.ListenAddr)
	}
	if cfg.Monitor.PollIntervalMs != 600 {
		t.Fatalf("unexpected poll interval: %d", cfg.Monitor.PollIntervalMs)
	}
	if cfg.Monitor.DebouncePolls != 2 {
		t.Fatalf("unexpected debounce: %d", cfg.Monitor.DebouncePolls)
	}
	if cfg.Analysis.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Analysis.Workers)
	}
	if cfg.Index.Backend != "local" {
		t.Fatalf("unexpected index backend: %q", cfg.Index.Backend)
	}
	if len(cfg.Display.Targets) != 1 || cfg.Display.Targets[0] != "log" {
		t.Fatalf("unexpected display targets: %v", cfg.Display.Targets)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadExplicitFileOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[llm]",
		`api_key = "file-key"`,
		`model = "  test/model  "`,
		"[embedding]",
		`base_url = "http://localhost:11434/v1"`,
		"[monitor]",
		"poll_interval_ms = 250",
		"[display]",
		`targets = ["HTTP", "log", "http", ""]`,
		`http_endpoint = "http://127.0.0.1:9980/songstate"`,
		"[index]",
		`backend = "Local"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("unexpected llm key: %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "test/model" {
		t.Fatalf("expected trimmed model, got %q", cfg.LLM.Model)
	}
	if cfg.Monitor.PollIntervalMs != 250 {
		t.Fatalf("unexpected poll interval: %d", cfg.Monitor.PollIntervalMs)
	}
	if cfg.Index.Backend != "local" {
		t.Fatalf("expected lowercased backend, got %q", cfg.Index.Backend)
	}
	wantTargets := []string{"http", "log"}
	if len(cfg.Display.Targets) != len(wantTargets) {
		t.Fatalf("unexpected targets: %v", cfg.Display.Targets)
	}
	for i, target := range wantTargets {
		if cfg.Display.Targets[i] != target {
			t.Fatalf("unexpected targets: %v", cfg.Display.Targets)
		}
	}
	if !cfg.DisplayTarget("http") || cfg.DisplayTarget("command") {
		t.Fatal("DisplayTarget lookups disagree with targets list")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.LLM.APIKey = "key"
		cfg.Embedding.APIKey = "key"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{
			name:    "zero embedding dimensions",
			mutate:  func(c *config.Config) { c.Embedding.Dimensions = 0 },
			wantSub: "embedding.dimensions",
		},
		{
			name:    "poll interval too small",
			mutate:  func(c *config.Config) { c.Monitor.PollIntervalMs = 50 },
			wantSub: "monitor.poll_interval_ms",
		},
		{
			name:    "unknown index backend",
			mutate:  func(c *config.Config) { c.Index.Backend = "faiss" },
			wantSub: "index.backend",
		},
		{
			name:    "qdrant backend needs host",
			mutate:  func(c *config.Config) { c.Index.Backend = "qdrant" },
			wantSub: "index.qdrant_host",
		},
		{
			name:    "unknown display target",
			mutate:  func(c *config.Config) { c.Display.Targets = []string{"beamer"} },
			wantSub: "display.targets",
		},
		{
			name:    "title similarity out of range",
			mutate:  func(c *config.Config) { c.Monitor.TitleSimilarity = 1.5 },
			wantSub: "monitor.title_similarity",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestValidateAllowsMissingCredentials(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("keyless config should validate (credentials are checked at daemon startup): %v", err)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Player.ListenAddr != "127.0.0.1:9876" {
		t.Fatalf("unexpected sample player bind: %q", cfg.Player.ListenAddr)
	}

	t.Setenv("LYRISCOPE_LLM_API_KEY", "llm-key")
	t.Setenv("LYRISCOPE_EMBEDDING_API_KEY", "embed-key")
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("Load(sample) returned error: %v", err)
	}
}

func TestExpandPathHandlesTilde(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("HOME-based path expansion test")
	}
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	expanded, err := config.ExpandPath("~/lyriscope/images")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(tempHome, "lyriscope", "images") {
		t.Fatalf("unexpected expansion: %q", expanded)
	}
}
