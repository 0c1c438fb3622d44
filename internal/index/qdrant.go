package index

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"lyriscope/internal/config"
	"lyriscope/internal/services"
)

const qdrantUpsertBatch = 128

// Qdrant answers similarity queries from a remote Qdrant collection. The
// collection is expected to hold image embeddings with a "path" payload key
// (and optionally "label"), as written by `lyriscope index import`.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	host       string
	port       int
	dims       int
}

var _ Index = (*Qdrant)(nil)

// NewQdrant connects to the configured Qdrant instance. dims is the expected
// vector dimensionality, used when the import tool creates the collection.
func NewQdrant(cfg config.Index, dims int) (*Qdrant, error) {
	host := strings.TrimSpace(cfg.QdrantHost)
	if host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "index", "open", "qdrant_host is required for the qdrant backend", nil)
	}
	port := cfg.QdrantPort
	if port == 0 {
		port = 6334
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "lyriscope"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 cfg.QdrantAPIKey,
		UseTLS:                 cfg.QdrantUseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrIndexUnavailable, "index", "open", "initialize qdrant client", err)
	}

	return &Qdrant{
		client:     client,
		collection: collection,
		host:       host,
		port:       port,
		dims:       dims,
	}, nil
}

// Collection returns the collection name queries run against.
func (q *Qdrant) Collection() string {
	return q.collection
}

// HealthCheck verifies the remote instance responds.
func (q *Qdrant) HealthCheck(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "health", "qdrant health check", err)
	}
	return nil
}

// Search queries the collection for the topK nearest points.
func (q *Qdrant) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 1
	}
	limit := uint64(topK)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrIndexUnavailable, "index", "search", "qdrant query", err)
	}

	matches := make([]Match, 0, len(points))
	for _, point := range points {
		match := Match{Score: float64(point.Score)}
		if point.Id != nil {
			switch id := point.Id.PointIdOptions.(type) {
			case *qdrant.PointId_Num:
				match.ID = fmt.Sprintf("%d", id.Num)
			case *qdrant.PointId_Uuid:
				match.ID = id.Uuid
			}
		}
		if value, ok := point.Payload["path"]; ok {
			match.Path = value.GetStringValue()
		}
		if value, ok := point.Payload["label"]; ok {
			match.Label = value.GetStringValue()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Info reports the collection point count.
func (q *Qdrant) Info(ctx context.Context) (Info, error) {
	info := Info{
		Backend:    BackendQdrant,
		Location:   fmt.Sprintf("%s:%d/%s", q.host, q.port, q.collection),
		Dimensions: q.dims,
	}
	collection, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err != nil {
		return info, services.Wrap(services.ErrIndexUnavailable, "index", "info", "get collection info", err)
	}
	if collection.PointsCount != nil {
		info.Count = int(*collection.PointsCount)
	}
	return info, nil
}

// EnsureCollection creates the collection with cosine distance when absent.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "import", "list collections", err)
	}
	if slices.Contains(collections, q.collection) {
		return nil
	}
	if q.dims <= 0 {
		return services.Wrap(services.ErrConfiguration, "index", "import",
			"embedding dimensions must be configured to create a qdrant collection", nil)
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return services.Wrap(services.ErrIndexUnavailable, "index", "import",
			fmt.Sprintf("create collection %q", q.collection), err)
	}
	return nil
}

// Upsert writes entries into the collection in batches. Point ids are
// derived from the image path so re-imports are idempotent.
func (q *Qdrant) Upsert(ctx context.Context, entries []Entry) (int, error) {
	written := 0
	for start := 0; start < len(entries); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(entries) {
			end = len(entries)
		}

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, entry := range entries[start:end] {
			if entry.Path == "" || len(entry.Vector) == 0 {
				continue
			}
			payload := map[string]any{"path": entry.Path}
			if entry.Label != "" {
				payload["label"] = entry.Label
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(pointID(entry.Path)),
				Vectors: qdrant.NewVectors(entry.Vector...),
				Payload: qdrant.NewValueMap(payload),
			})
		}
		if len(points) == 0 {
			continue
		}

		wait := true
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
			Wait:           &wait,
		})
		if err != nil {
			return written, services.Wrap(services.ErrIndexUnavailable, "index", "import",
				fmt.Sprintf("upsert batch [%d:%d]", start, end), err)
		}
		written += len(points)
	}
	return written, nil
}

// Close shuts down the client connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
