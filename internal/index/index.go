// Package index provides similarity search over pre-computed image
// embeddings.
//
// Two backends are supported: a local SQLite vector store searched with
// in-memory cosine similarity, and a remote Qdrant collection. The index is
// read-only while the daemon runs; `lyriscope index import` populates either
// backend offline. When no backend can be opened the pipeline runs against
// an Unavailable index and keeps displaying text-only updates.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lyriscope/internal/config"
	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

// Match is a single similarity hit.
type Match struct {
	ID    string
	Path  string
	Label string
	Score float64
}

// Info describes an opened index for status and CLI reporting.
type Info struct {
	Backend    string
	Location   string
	Count      int
	Dimensions int
	Model      string
}

// Index answers nearest-neighbor queries over image embeddings.
type Index interface {
	// Search returns up to topK matches ranked by descending cosine
	// similarity to vector.
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Info reports backend, size, and dimensionality.
	Info(ctx context.Context) (Info, error)

	Close() error
}

// Backend names accepted in configuration.
const (
	BackendLocal  = "local"
	BackendQdrant = "qdrant"
)

// Open constructs the configured index backend. Open failures are returned
// wrapped with ErrIndexUnavailable so callers can degrade instead of abort.
func Open(cfg *config.Config, logger *slog.Logger) (Index, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Index.Backend)) {
	case "", BackendLocal:
		store, err := OpenStore(cfg.Paths.IndexPath)
		if err != nil {
			return nil, err
		}
		local, err := NewLocal(store)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.Info("opened local image index",
			logging.String("path", cfg.Paths.IndexPath),
			logging.Int("items", local.Len()))
		return local, nil
	case BackendQdrant:
		remote, err := NewQdrant(cfg.Index, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to qdrant image index",
			logging.String("host", cfg.Index.QdrantHost),
			logging.Int("port", cfg.Index.QdrantPort),
			logging.String("collection", remote.Collection()))
		return remote, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "index", "open",
			fmt.Sprintf("unknown index backend %q", cfg.Index.Backend), nil)
	}
}

// Unavailable is an Index whose every search fails with ErrIndexUnavailable.
// The daemon falls back to it when the configured backend cannot be opened,
// keeping the lyric pipeline alive without images.
type Unavailable struct {
	Reason string
}

var _ Index = Unavailable{}

func (u Unavailable) Search(context.Context, []float32, int) ([]Match, error) {
	return nil, services.Wrap(services.ErrIndexUnavailable, "index", "search", u.Reason, nil)
}

func (u Unavailable) Info(context.Context) (Info, error) {
	return Info{Backend: "unavailable"}, services.Wrap(services.ErrIndexUnavailable, "index", "info", u.Reason, nil)
}

func (u Unavailable) Close() error { return nil }
