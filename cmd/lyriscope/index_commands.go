package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lyriscope/internal/api"
	"lyriscope/internal/config"
	"lyriscope/internal/embedding"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and maintain the image embedding index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newIndexInfoCommand(ctx))
	cmd.AddCommand(newIndexImportCommand(ctx))
	cmd.AddCommand(newIndexSearchCommand(ctx))
	return cmd
}

func newIndexInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index backend, size, and embedding settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}

			idx, err := index.Open(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer idx.Close()

			info, err := idx.Info(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, api.FromIndexInfo(info))
			}

			stdout := cmd.OutOrStdout()
			if location := strings.TrimSpace(info.Location); location != "" {
				fmt.Fprintf(stdout, "Backend: %s (%s)\n", info.Backend, location)
			} else {
				fmt.Fprintf(stdout, "Backend: %s\n", info.Backend)
			}
			fmt.Fprintf(stdout, "Items: %d\n", info.Count)
			if info.Dimensions > 0 {
				fmt.Fprintf(stdout, "Dimensions: %d\n", info.Dimensions)
			}
			if model := strings.TrimSpace(info.Model); model != "" {
				fmt.Fprintf(stdout, "Model: %s\n", model)
			}
			if info.Count == 0 {
				fmt.Fprintln(stdout, "Index is empty; import images with `lyriscope index import <records.jsonl>`")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output index info as JSON")
	return cmd
}

func newIndexImportCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var parallelism int
	cmd := &cobra.Command{
		Use:   "import <records.jsonl>",
		Short: "Import image records into the index",
		Long: "Import reads a JSONL file of image records. Each record names an image\n" +
			"path plus either a pre-computed embedding vector or a text to encode\n" +
			"with the configured embedding API.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open records file: %w", err)
			}
			defer file.Close()

			records, err := index.ReadRecords(file)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(stdout, "No records found in %s\n", path)
				return nil
			}

			encoder, err := newEncoder(cfg)
			if err != nil {
				return err
			}

			importer := &index.Importer{
				Logger:      logging.NewNop(),
				BatchSize:   batchSize,
				Parallelism: parallelism,
			}
			if encoder != nil {
				importer.Encoder = encoder
			}
			entries, stats, err := importer.Resolve(cmd.Context(), records)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(stdout, "No importable records in %s (%d skipped)\n", path, stats.Skipped)
				return nil
			}

			added, err := storeEntries(cmd, cfg, encoder, entries, stats)
			if err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Imported %d of %d records (encoded %d, skipped %d)\n",
				added, stats.Total, stats.Encoded, stats.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Texts per embedding request (defaults to the encoder batch size)")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent embedding requests")
	return cmd
}

func storeEntries(cmd *cobra.Command, cfg *config.Config, encoder *embedding.OpenAI, entries []index.Entry, stats index.ImportStats) (int, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.Index.Backend), index.BackendQdrant) {
		qdrant, err := index.NewQdrant(cfg.Index, len(entries[0].Vector))
		if err != nil {
			return 0, err
		}
		defer qdrant.Close()
		if err := qdrant.EnsureCollection(cmd.Context()); err != nil {
			return 0, err
		}
		return qdrant.Upsert(cmd.Context(), entries)
	}

	store, err := index.OpenStore(cfg.Paths.IndexPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	added, err := store.AddBatch(cmd.Context(), entries)
	if err != nil {
		return 0, err
	}
	if stats.Encoded > 0 && encoder != nil {
		if err := store.SetMeta(cmd.Context(), index.MetaModel, encoder.Model()); err != nil {
			return added, err
		}
		if err := store.SetMeta(cmd.Context(), index.MetaDimensions, strconv.Itoa(encoder.Dimension())); err != nil {
			return added, err
		}
	}
	return added, nil
}

func newIndexSearchCommand(ctx *commandContext) *cobra.Command {
	var topK int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find the closest indexed images for a text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg == nil {
				return fmt.Errorf("configuration not available")
			}

			encoder, err := newEncoder(cfg)
			if err != nil {
				return err
			}
			if encoder == nil {
				return fmt.Errorf("embedding.api_key is required to search: set LYRISCOPE_EMBEDDING_API_KEY or add it to the config file")
			}

			vector, err := encoder.Encode(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			idx, err := index.Open(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer idx.Close()

			if topK <= 0 {
				topK = cfg.Index.TopK
			}
			matches, err := idx.Search(cmd.Context(), vector, topK)
			if err != nil {
				return err
			}

			if asJSON {
				type searchMatch struct {
					Path  string  `json:"path"`
					Label string  `json:"label,omitempty"`
					Score float64 `json:"score"`
				}
				out := make([]searchMatch, 0, len(matches))
				for _, match := range matches {
					out = append(out, searchMatch{Path: match.Path, Label: match.Label, Score: match.Score})
				}
				return writeJSON(cmd, out)
			}

			stdout := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(stdout, "No matches found")
				return nil
			}
			fmt.Fprintln(stdout, renderMatchTable(matches))
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of matches to return (defaults to index.top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output matches as JSON")
	return cmd
}

func newEncoder(cfg *config.Config) (*embedding.OpenAI, error) {
	key := strings.TrimSpace(cfg.Embedding.APIKey)
	if key == "" {
		return nil, nil
	}
	return embedding.NewOpenAI(key,
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithDimensions(cfg.Embedding.Dimensions),
		embedding.WithBaseURL(cfg.Embedding.BaseURL),
	)
}
