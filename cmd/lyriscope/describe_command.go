package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lyriscope/internal/describer"
	"lyriscope/internal/logging"
	"lyriscope/internal/services/llm"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	var songTitle string
	cmd := &cobra.Command{
		Use:   "describe <line>",
		Short: "Describe a single lyric line without the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}

			settings := cfg.LLMSettings()
			if settings.APIKey == "" {
				return fmt.Errorf("llm.api_key is required to describe lines: set LYRISCOPE_LLM_API_KEY or add it to the config file")
			}

			client := llm.NewClient(llm.Config{
				APIKey:         settings.APIKey,
				BaseURL:        settings.BaseURL,
				Model:          settings.Model,
				Referer:        settings.Referer,
				Title:          settings.Title,
				TimeoutSeconds: settings.TimeoutSeconds,
			})
			desc := describer.New(client, describer.Settings{}, logging.NewNop())

			description, err := desc.Describe(cmd.Context(), describer.Request{
				SessionID: "cli",
				SongTitle: strings.TrimSpace(songTitle),
				Line:      args[0],
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), description)
			return nil
		},
	}
	cmd.Flags().StringVar(&songTitle, "song", "", "Song title used as context for the description")
	return cmd
}
