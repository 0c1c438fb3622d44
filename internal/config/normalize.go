package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePlayer()
	c.normalizeMonitor()
	c.normalizeAnalysis()
	c.normalizeLLM()
	c.normalizeEmbedding()
	c.normalizeIndex()
	c.normalizeDisplay()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IndexPath) == "" {
		c.Paths.IndexPath = filepath.Join(c.Paths.DataDir, "index.db")
	}
	if c.Paths.IndexPath, err = expandPath(c.Paths.IndexPath); err != nil {
		return fmt.Errorf("paths.index_path: %w", err)
	}
	return nil
}

func (c *Config) normalizePlayer() {
	c.Player.ListenAddr = strings.TrimSpace(c.Player.ListenAddr)
	if c.Player.ListenAddr == "" {
		c.Player.ListenAddr = defaultPlayerListenAddr
	}
	c.Player.Path = strings.TrimSpace(c.Player.Path)
	if c.Player.Path == "" {
		c.Player.Path = defaultPlayerPath
	}
	if !strings.HasPrefix(c.Player.Path, "/") {
		c.Player.Path = "/" + c.Player.Path
	}
	if c.Player.StaleAfterSeconds <= 0 {
		c.Player.StaleAfterSeconds = defaultPlayerStaleSeconds
	}
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.PollIntervalMs <= 0 {
		c.Monitor.PollIntervalMs = defaultPollIntervalMs
	}
	if c.Monitor.SongCheckEvery <= 0 {
		c.Monitor.SongCheckEvery = defaultSongCheckEvery
	}
	if c.Monitor.DebouncePolls <= 0 {
		c.Monitor.DebouncePolls = defaultDebouncePolls
	}
	if c.Monitor.SignalLostAfter <= 0 {
		c.Monitor.SignalLostAfter = defaultSignalLostAfter
	}
	if c.Monitor.GracePeriodSeconds <= 0 {
		c.Monitor.GracePeriodSeconds = defaultGracePeriodSeconds
	}
	if c.Monitor.TitleSimilarity <= 0 {
		c.Monitor.TitleSimilarity = defaultTitleSimilarity
	}
}

func (c *Config) normalizeAnalysis() {
	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = defaultAnalysisWorkers
	}
	if c.Analysis.LineWaitTimeoutMs <= 0 {
		c.Analysis.LineWaitTimeoutMs = defaultLineWaitTimeoutMs
	}
	if c.Analysis.PerSongRequestBudget <= 0 {
		c.Analysis.PerSongRequestBudget = defaultPerSongBudget
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("LYRISCOPE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
	if c.LLM.RetryBackoffSeconds <= 0 {
		c.LLM.RetryBackoffSeconds = defaultLLMRetryBackoff
	}
	if c.LLM.RetryBackoffMaxSeconds < c.LLM.RetryBackoffSeconds {
		c.LLM.RetryBackoffMaxSeconds = defaultLLMRetryBackoffMax
	}
	if c.LLM.MaxInflight <= 0 {
		c.LLM.MaxInflight = defaultLLMMaxInflight
	}
	if c.LLM.MinRequestIntervalMs < 0 {
		c.LLM.MinRequestIntervalMs = defaultLLMMinIntervalMs
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		if value, ok := os.LookupEnv("LYRISCOPE_EMBEDDING_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		}
	}
	c.Embedding.BaseURL = strings.TrimSpace(c.Embedding.BaseURL)
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = defaultEmbeddingDims
	}
}

func (c *Config) normalizeIndex() {
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = defaultIndexBackend
	}
	c.Index.Collection = strings.TrimSpace(c.Index.Collection)
	if c.Index.Collection == "" {
		c.Index.Collection = defaultIndexCollection
	}
	c.Index.QdrantHost = strings.TrimSpace(c.Index.QdrantHost)
	if c.Index.QdrantPort <= 0 {
		c.Index.QdrantPort = defaultQdrantPort
	}
	c.Index.QdrantAPIKey = strings.TrimSpace(c.Index.QdrantAPIKey)
	if c.Index.QdrantAPIKey == "" {
		if value, ok := os.LookupEnv("QDRANT_API_KEY"); ok {
			c.Index.QdrantAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = defaultIndexTopK
	}
}

func (c *Config) normalizeDisplay() {
	if len(c.Display.Targets) == 0 {
		c.Display.Targets = []string{"log"}
	} else {
		targets := make([]string, 0, len(c.Display.Targets))
		seen := make(map[string]struct{}, len(c.Display.Targets))
		for _, target := range c.Display.Targets {
			normalized := strings.ToLower(strings.TrimSpace(target))
			if normalized == "" {
				continue
			}
			if _, exists := seen[normalized]; exists {
				continue
			}
			seen[normalized] = struct{}{}
			targets = append(targets, normalized)
		}
		if len(targets) == 0 {
			targets = []string{"log"}
		}
		c.Display.Targets = targets
	}
	c.Display.Command = strings.TrimSpace(c.Display.Command)
	if c.Display.Command == "" {
		c.Display.Command = defaultDisplayCommand
	}
	c.Display.HTTPEndpoint = strings.TrimSpace(c.Display.HTTPEndpoint)
	if c.Display.HTTPEndpoint == "" {
		c.Display.HTTPEndpoint = defaultDisplayEndpoint
	}
	if c.Display.HTTPTimeoutSeconds <= 0 {
		c.Display.HTTPTimeoutSeconds = defaultDisplayHTTPTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
