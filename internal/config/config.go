package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database location configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	IndexPath string `toml:"index_path"`
}

// Player contains configuration for the player bridge endpoint.
type Player struct {
	ListenAddr        string `toml:"listen_addr"`
	Path              string `toml:"path"`
	StaleAfterSeconds int    `toml:"stale_after_seconds"`
}

// Monitor contains configuration for song/lyric polling.
type Monitor struct {
	PollIntervalMs     int     `toml:"poll_interval_ms"`
	SongCheckEvery     int     `toml:"song_check_every"`
	DebouncePolls      int     `toml:"debounce_polls"`
	SignalLostAfter    int     `toml:"signal_lost_after"`
	GracePeriodSeconds int     `toml:"grace_period_seconds"`
	TitleSimilarity    float64 `toml:"title_similarity"`
}

// Analysis contains configuration for the pre-warm pool and line waits.
type Analysis struct {
	Workers              int `toml:"workers"`
	LineWaitTimeoutMs    int `toml:"line_wait_timeout_ms"`
	PerSongRequestBudget int `toml:"per_song_request_budget"`
}

// LLM contains connection and rate settings for the visual describer model.
type LLM struct {
	APIKey                 string `toml:"api_key"`
	BaseURL                string `toml:"base_url"`
	Model                  string `toml:"model"`
	Referer                string `toml:"referer"`
	Title                  string `toml:"title"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	RetryAttempts          int    `toml:"retry_attempts"`
	RetryBackoffSeconds    int    `toml:"retry_backoff_seconds"`
	RetryBackoffMaxSeconds int    `toml:"retry_backoff_max_seconds"`
	MaxInflight            int    `toml:"max_inflight"`
	MinRequestIntervalMs   int    `toml:"min_request_interval_ms"`
}

// Embedding contains settings for the text embedding encoder.
type Embedding struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// Index contains settings for the image similarity index.
type Index struct {
	Backend      string `toml:"backend"`
	Collection   string `toml:"collection"`
	QdrantHost   string `toml:"qdrant_host"`
	QdrantPort   int    `toml:"qdrant_port"`
	QdrantAPIKey string `toml:"qdrant_api_key"`
	QdrantUseTLS bool   `toml:"qdrant_use_tls"`
	TopK         int    `toml:"top_k"`
}

// Display contains settings for how matched images are surfaced.
type Display struct {
	Targets            []string `toml:"targets"`
	Command            string   `toml:"command"`
	HTTPEndpoint       string   `toml:"http_endpoint"`
	HTTPTimeoutSeconds int      `toml:"http_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout_seconds"`
	SongStarted    bool   `toml:"song_started"`
	SignalLost     bool   `toml:"signal_lost"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for lyriscope.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the embedding index location
//   - Player: bridge endpoint the browser userscript pushes state to
//   - Monitor: poll cadence, debounce, and signal-loss thresholds
//   - Analysis: pre-warm worker pool and per-line wait budget
//   - LLM: connection and rate settings for visual description
//   - Embedding: text encoder used for similarity queries
//   - Index: local SQLite or remote Qdrant similarity backend
//   - Display: viewer command / HTTP push targets for matched images
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Player        Player        `toml:"player"`
	Monitor       Monitor       `toml:"monitor"`
	Analysis      Analysis      `toml:"analysis"`
	LLM           LLM           `toml:"llm"`
	Embedding     Embedding     `toml:"embedding"`
	Index         Index         `toml:"index"`
	Display       Display       `toml:"display"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lyriscope/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/lyriscope/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lyriscope.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMSettings contains the connection settings the describer client consumes.
type LLMSettings struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// LLMSettings returns the sanitized LLM connection settings.
func (c *Config) LLMSettings() LLMSettings {
	return LLMSettings{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// DisplayTarget reports whether the named display target is enabled.
func (c *Config) DisplayTarget(name string) bool {
	for _, target := range c.Display.Targets {
		if target == name {
			return true
		}
	}
	return false
}
