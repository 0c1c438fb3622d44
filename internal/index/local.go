package index

import (
	"context"
	"sort"
	"strconv"

	"lyriscope/internal/embedding"
	"lyriscope/internal/services"
)

// Local answers similarity queries from an in-memory snapshot of the SQLite
// store. Vectors are normalized once at load so a search is a dot product
// per item plus a sort.
type Local struct {
	store *Store
	items []localItem
	dims  int
	model string
}

type localItem struct {
	id     int64
	path   string
	label  string
	vector []float32
}

var _ Index = (*Local)(nil)

// NewLocal loads every entry from store and prepares it for search. The
// snapshot is immutable; re-importing requires reopening the index.
func NewLocal(store *Store) (*Local, error) {
	ctx := context.Background()
	entries, err := store.All(ctx)
	if err != nil {
		return nil, err
	}

	local := &Local{store: store}
	local.model, _ = store.Meta(ctx, MetaModel)
	for _, entry := range entries {
		if len(entry.Vector) == 0 {
			continue
		}
		if local.dims == 0 {
			local.dims = len(entry.Vector)
		}
		if len(entry.Vector) != local.dims {
			return nil, services.Wrap(services.ErrIndexUnavailable, "index", "load",
				"store mixes vector dimensionalities; re-import with one embedding model", nil)
		}
		local.items = append(local.items, localItem{
			id:     entry.ID,
			path:   entry.Path,
			label:  entry.Label,
			vector: embedding.Normalize(entry.Vector),
		})
	}
	return local, nil
}

// Len returns the number of searchable items.
func (l *Local) Len() int {
	return len(l.items)
}

// Search ranks stored items by cosine similarity to vector.
func (l *Local) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 1
	}
	if len(l.items) == 0 {
		return nil, nil
	}
	if l.dims != 0 && len(vector) != l.dims {
		return nil, services.Wrap(services.ErrValidation, "index", "search",
			"query dimensionality does not match the index", nil)
	}

	query := embedding.Normalize(vector)
	matches := make([]Match, 0, len(l.items))
	for _, item := range l.items {
		matches = append(matches, Match{
			ID:    formatID(item.id),
			Path:  item.path,
			Label: item.label,
			Score: embedding.Dot(query, item.vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Info reports the snapshot size and dimensionality.
func (l *Local) Info(ctx context.Context) (Info, error) {
	return Info{
		Backend:    BackendLocal,
		Location:   l.store.Path(),
		Count:      len(l.items),
		Dimensions: l.dims,
		Model:      l.model,
	}, nil
}

// Close releases the underlying store.
func (l *Local) Close() error {
	return l.store.Close()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
