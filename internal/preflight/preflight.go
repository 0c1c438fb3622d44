package preflight

import (
	"context"

	"lyriscope/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Directories (always checked)
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	// Bridge listen address
	results = append(results, CheckListenAddr("Player bridge", cfg.Player.ListenAddr))

	// Describer LLM
	results = append(results, CheckLLM(ctx, "Describer LLM", cfg.LLMSettings()))

	// Embedding credentials
	results = append(results, CheckEmbedding(cfg.Embedding))

	// Image index
	results = append(results, CheckIndex(ctx, cfg))

	// Display targets
	results = append(results, CheckDisplay(cfg))

	// Notifications
	results = append(results, CheckNotificationsFromConfig(cfg))

	return results
}
