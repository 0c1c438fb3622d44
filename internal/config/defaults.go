package config

const (
	defaultDataDir            = "~/.local/share/lyriscope"
	defaultLogDir             = "~/.local/share/lyriscope/logs"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultPlayerListenAddr   = "127.0.0.1:9876"
	defaultPlayerPath         = "/player"
	defaultPlayerStaleSeconds = 2
	defaultPollIntervalMs     = 600
	defaultSongCheckEvery     = 5
	defaultDebouncePolls      = 2
	defaultSignalLostAfter    = 5
	defaultGracePeriodSeconds = 10
	defaultTitleSimilarity    = 0.9
	defaultAnalysisWorkers    = 2
	defaultLineWaitTimeoutMs  = 3000
	defaultPerSongBudget      = 64
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/lyriscope/lyriscope"
	defaultLLMTitle           = "Lyriscope Visual Describer"
	defaultLLMTimeoutSeconds  = 60
	defaultLLMRetryAttempts   = 3
	defaultLLMRetryBackoff    = 2
	defaultLLMRetryBackoffMax = 16
	defaultLLMMaxInflight     = 2
	defaultLLMMinIntervalMs   = 250
	defaultEmbeddingModel     = "text-embedding-3-small"
	defaultEmbeddingDims      = 512
	defaultIndexBackend       = "local"
	defaultIndexCollection    = "lyriscope"
	defaultQdrantPort         = 6334
	defaultIndexTopK          = 1
	defaultDisplayCommand     = "xdg-open"
	defaultDisplayEndpoint    = "http://127.0.0.1:9980/songstate"
	defaultDisplayHTTPTimeout = 5
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Player: Player{
			ListenAddr:        defaultPlayerListenAddr,
			Path:              defaultPlayerPath,
			StaleAfterSeconds: defaultPlayerStaleSeconds,
		},
		Monitor: Monitor{
			PollIntervalMs:     defaultPollIntervalMs,
			SongCheckEvery:     defaultSongCheckEvery,
			DebouncePolls:      defaultDebouncePolls,
			SignalLostAfter:    defaultSignalLostAfter,
			GracePeriodSeconds: defaultGracePeriodSeconds,
			TitleSimilarity:    defaultTitleSimilarity,
		},
		Analysis: Analysis{
			Workers:              defaultAnalysisWorkers,
			LineWaitTimeoutMs:    defaultLineWaitTimeoutMs,
			PerSongRequestBudget: defaultPerSongBudget,
		},
		LLM: LLM{
			BaseURL:                defaultLLMBaseURL,
			Model:                  defaultLLMModel,
			Referer:                defaultLLMReferer,
			Title:                  defaultLLMTitle,
			TimeoutSeconds:         defaultLLMTimeoutSeconds,
			RetryAttempts:          defaultLLMRetryAttempts,
			RetryBackoffSeconds:    defaultLLMRetryBackoff,
			RetryBackoffMaxSeconds: defaultLLMRetryBackoffMax,
			MaxInflight:            defaultLLMMaxInflight,
			MinRequestIntervalMs:   defaultLLMMinIntervalMs,
		},
		Embedding: Embedding{
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDims,
		},
		Index: Index{
			Backend:    defaultIndexBackend,
			Collection: defaultIndexCollection,
			QdrantPort: defaultQdrantPort,
			TopK:       defaultIndexTopK,
		},
		Display: Display{
			Targets:            []string{"log"},
			Command:            defaultDisplayCommand,
			HTTPEndpoint:       defaultDisplayEndpoint,
			HTTPTimeoutSeconds: defaultDisplayHTTPTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			SongStarted:    true,
			SignalLost:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
