package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlayer(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlayer() error {
	if !strings.Contains(c.Player.ListenAddr, ":") {
		return fmt.Errorf("player.listen_addr %q must be host:port", c.Player.ListenAddr)
	}
	if c.Player.StaleAfterSeconds <= 0 {
		return errors.New("player.stale_after_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.PollIntervalMs < 100 {
		return errors.New("monitor.poll_interval_ms must be at least 100")
	}
	if err := ensurePositiveMap(map[string]int{
		"monitor.song_check_every":     c.Monitor.SongCheckEvery,
		"monitor.debounce_polls":       c.Monitor.DebouncePolls,
		"monitor.signal_lost_after":    c.Monitor.SignalLostAfter,
		"monitor.grace_period_seconds": c.Monitor.GracePeriodSeconds,
	}); err != nil {
		return err
	}
	if c.Monitor.TitleSimilarity <= 0 || c.Monitor.TitleSimilarity > 1 {
		return errors.New("monitor.title_similarity must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	return ensurePositiveMap(map[string]int{
		"analysis.workers":                 c.Analysis.Workers,
		"analysis.line_wait_timeout_ms":    c.Analysis.LineWaitTimeoutMs,
		"analysis.per_song_request_budget": c.Analysis.PerSongRequestBudget,
	})
}

// Credentials are deliberately not validated here: status and config
// commands must work on a keyless config. The daemon checks llm.api_key
// at startup.
func (c *Config) validateLLM() error {
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":       c.LLM.TimeoutSeconds,
		"llm.retry_attempts":        c.LLM.RetryAttempts,
		"llm.retry_backoff_seconds": c.LLM.RetryBackoffSeconds,
		"llm.max_inflight":          c.LLM.MaxInflight,
	}); err != nil {
		return err
	}
	if c.LLM.RetryBackoffMaxSeconds < c.LLM.RetryBackoffSeconds {
		return errors.New("llm.retry_backoff_max_seconds must be at least llm.retry_backoff_seconds")
	}
	return nil
}

// A missing embedding key is not an error: the daemon runs text-only
// without an encoder and the startup checks surface the gap.
func (c *Config) validateEmbedding() error {
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding.dimensions must be positive")
	}
	return nil
}

func (c *Config) validateIndex() error {
	switch c.Index.Backend {
	case "local":
	case "qdrant":
		if c.Index.QdrantHost == "" {
			return errors.New("index.qdrant_host must be set when index.backend is qdrant")
		}
		if c.Index.QdrantPort <= 0 {
			return errors.New("index.qdrant_port must be positive")
		}
	default:
		return fmt.Errorf("index.backend %q is not supported (local, qdrant)", c.Index.Backend)
	}
	if c.Index.TopK <= 0 {
		return errors.New("index.top_k must be positive")
	}
	return nil
}

func (c *Config) validateDisplay() error {
	for _, target := range c.Display.Targets {
		switch target {
		case "log", "command", "http":
		default:
			return fmt.Errorf("display.targets entry %q is not supported (log, command, http)", target)
		}
	}
	if c.DisplayTarget("command") && strings.TrimSpace(c.Display.Command) == "" {
		return errors.New("display.command must be set when the command target is enabled")
	}
	if c.DisplayTarget("http") {
		if strings.TrimSpace(c.Display.HTTPEndpoint) == "" {
			return errors.New("display.http_endpoint must be set when the http target is enabled")
		}
		if !strings.HasPrefix(c.Display.HTTPEndpoint, "http://") && !strings.HasPrefix(c.Display.HTTPEndpoint, "https://") {
			return fmt.Errorf("display.http_endpoint %q must be an http(s) URL", c.Display.HTTPEndpoint)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
