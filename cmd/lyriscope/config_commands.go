package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lyriscope/internal/config"
	"lyriscope/internal/textutil"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand(ctx))

	return configCmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolvedPath)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set llm.api_key (or export LYRISCOPE_LLM_API_KEY) before running the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if ctx.configFlag != nil {
				path = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Config file: %s\n", resolvedPath)
			} else {
				fmt.Fprintf(out, "Config file: %s (missing, defaults in effect)\n", resolvedPath)
			}
			fmt.Fprintf(out, "Data directory: %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log directory: %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Player bridge: %s\n", cfg.Player.ListenAddr)
			fmt.Fprintf(out, "LLM model: %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "LLM key set: %s\n", textutil.Ternary(strings.TrimSpace(cfg.LLM.APIKey) != "", "yes", "no"))
			fmt.Fprintf(out, "Embedding model: %s (%d dimensions)\n", cfg.Embedding.Model, cfg.Embedding.Dimensions)
			fmt.Fprintf(out, "Embedding key set: %s\n", textutil.Ternary(strings.TrimSpace(cfg.Embedding.APIKey) != "", "yes", "no"))
			if strings.EqualFold(strings.TrimSpace(cfg.Index.Backend), "qdrant") {
				fmt.Fprintf(out, "Index backend: qdrant (%s:%d)\n", cfg.Index.QdrantHost, cfg.Index.QdrantPort)
			} else {
				fmt.Fprintf(out, "Index backend: local (%s)\n", cfg.Paths.IndexPath)
			}
			fmt.Fprintf(out, "Display targets: %s\n", strings.Join(cfg.Display.Targets, ", "))
			fmt.Fprintf(out, "Ntfy topic set: %s\n", textutil.Ternary(strings.TrimSpace(cfg.Notifications.NtfyTopic) != "", "yes", "no"))
			return nil
		},
	}
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file location",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var target string
			if ctx.configFlag != nil {
				target = strings.TrimSpace(*ctx.configFlag)
			}
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(target); err == nil {
				fmt.Fprintln(out, target)
			} else if os.IsNotExist(err) {
				fmt.Fprintf(out, "%s (missing, run `lyriscope config init`)\n", target)
			} else {
				return fmt.Errorf("check config path: %w", err)
			}
			return nil
		},
	}
}
