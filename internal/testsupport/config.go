package testsupport

import (
	"path/filepath"
	"testing"

	"lyriscope/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.IndexPath = filepath.Join(base, "data", "index.db")
	cfgVal.Player.ListenAddr = "127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"
	cfgVal.Embedding.APIKey = "test"
	cfgVal.Display.Targets = []string{"log"}

	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure config directories: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMKey sets the language model API key on the test config.
func WithLLMKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithDisplayTargets overrides the display target list on the test config.
func WithDisplayTargets(targets ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Display.Targets = targets
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
