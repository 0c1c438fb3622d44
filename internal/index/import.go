package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lyriscope/internal/embedding"
	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

// Record is one line of an import JSONL file. Either a pre-computed vector
// or a text to encode must be present alongside the image path.
type Record struct {
	Path   string    `json:"path"`
	Label  string    `json:"label,omitempty"`
	Text   string    `json:"text,omitempty"`
	Vector []float32 `json:"vector,omitempty"`
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Total   int
	Encoded int
	Skipped int
}

// maxRecordLine bounds a single JSONL line; wide vectors serialize long.
const maxRecordLine = 16 << 20

// ReadRecords parses a JSONL stream of import records. Blank lines and
// #-comments are ignored.
func ReadRecords(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLine)

	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, services.Wrap(services.ErrValidation, "index", "import",
				fmt.Sprintf("parse line %d", lineNo), err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "index", "import", "read records", err)
	}
	return records, nil
}

// Importer resolves import records into storable entries, encoding texts
// that arrive without a pre-computed vector.
type Importer struct {
	Encoder     embedding.Encoder
	Logger      *slog.Logger
	BatchSize   int
	Parallelism int

	retryPause time.Duration
}

// Resolve converts records to entries in input order. Records lacking both a
// vector and a text, or lacking a path, are counted as skipped. Transient
// encoder failures are retried once per batch before the import aborts.
func (im *Importer) Resolve(ctx context.Context, records []Record) ([]Entry, ImportStats, error) {
	stats := ImportStats{Total: len(records)}
	logger := im.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	entries := make([]Entry, len(records))
	var pendingIdx []int
	var pendingText []string
	for i, record := range records {
		if record.Path == "" {
			stats.Skipped++
			continue
		}
		entries[i] = Entry{Path: record.Path, Label: record.Label, Vector: record.Vector}
		if len(record.Vector) > 0 {
			continue
		}
		text := strings.TrimSpace(record.Text)
		if text == "" {
			stats.Skipped++
			entries[i] = Entry{}
			continue
		}
		pendingIdx = append(pendingIdx, i)
		pendingText = append(pendingText, text)
	}

	if len(pendingIdx) > 0 {
		if im.Encoder == nil {
			return nil, stats, services.Wrap(services.ErrConfiguration, "index", "import",
				"records carry texts but no embedding encoder is configured", nil)
		}
		if err := im.encodePending(ctx, entries, pendingIdx, pendingText); err != nil {
			return nil, stats, err
		}
		stats.Encoded = len(pendingIdx)
		logger.Info("encoded import texts",
			logging.Int("texts", len(pendingIdx)),
			logging.Int("records", len(records)))
	}

	resolved := entries[:0]
	for _, entry := range entries {
		if entry.Path != "" && len(entry.Vector) > 0 {
			resolved = append(resolved, entry)
		}
	}
	return resolved, stats, nil
}

func (im *Importer) encodePending(ctx context.Context, entries []Entry, pendingIdx []int, pendingText []string) error {
	batchSize := im.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	parallelism := im.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}
	pause := im.retryPause
	if pause <= 0 {
		pause = 2 * time.Second
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for start := 0; start < len(pendingIdx); start += batchSize {
		end := start + batchSize
		if end > len(pendingIdx) {
			end = len(pendingIdx)
		}
		idx := pendingIdx[start:end]
		texts := pendingText[start:end]
		group.Go(func() error {
			vecs, err := im.Encoder.EncodeBatch(groupCtx, texts)
			if err != nil && services.Retryable(err) {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case <-time.After(pause):
				}
				vecs, err = im.Encoder.EncodeBatch(groupCtx, texts)
			}
			if err != nil {
				return err
			}
			for j, vec := range vecs {
				entries[idx[j]].Vector = vec
			}
			return nil
		})
	}
	return group.Wait()
}

// pointID derives a stable UUID for an image path so re-imports overwrite
// instead of duplicating.
func pointID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}
