package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lyriscope/internal/services"
)

func newLocalWith(t *testing.T, entries []Entry) *Local {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, err := store.AddBatch(context.Background(), entries); err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}
	local, err := NewLocal(store)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })
	return local
}

func TestLocalSearchRanksByCosine(t *testing.T) {
	local := newLocalWith(t, []Entry{
		{Path: "north.jpg", Vector: []float32{0, 1}},
		{Path: "east.jpg", Vector: []float32{1, 0}},
		{Path: "northeast.jpg", Vector: []float32{1, 1}},
	})

	matches, err := local.Search(context.Background(), []float32{2, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Path != "east.jpg" {
		t.Fatalf("best match = %q, want east.jpg", matches[0].Path)
	}
	if matches[1].Path != "northeast.jpg" {
		t.Fatalf("second match = %q, want northeast.jpg", matches[1].Path)
	}
	if matches[0].Score <= matches[1].Score || matches[1].Score <= matches[2].Score {
		t.Fatalf("scores not descending: %v", matches)
	}
}

func TestLocalSearchTruncatesToTopK(t *testing.T) {
	local := newLocalWith(t, []Entry{
		{Path: "a.jpg", Vector: []float32{1, 0}},
		{Path: "b.jpg", Vector: []float32{0.9, 0.1}},
		{Path: "c.jpg", Vector: []float32{0, 1}},
	})

	matches, err := local.Search(context.Background(), []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Path != "a.jpg" {
		t.Fatalf("unexpected top-1 result: %#v", matches)
	}
}

func TestLocalSearchRejectsDimensionMismatch(t *testing.T) {
	local := newLocalWith(t, []Entry{{Path: "a.jpg", Vector: []float32{1, 0, 0}}})

	if _, err := local.Search(context.Background(), []float32{1, 0}, 1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLocalSearchEmptyIndexReturnsNoMatches(t *testing.T) {
	local := newLocalWith(t, nil)

	matches, err := local.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestLocalInfoReportsSnapshot(t *testing.T) {
	local := newLocalWith(t, []Entry{
		{Path: "a.jpg", Vector: []float32{1, 0}},
		{Path: "b.jpg", Vector: []float32{0, 1}},
	})

	info, err := local.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Backend != BackendLocal || info.Count != 2 || info.Dimensions != 2 {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestUnavailableIndexSignalsSentinel(t *testing.T) {
	idx := Unavailable{Reason: "no backend"}
	if _, err := idx.Search(context.Background(), []float32{1}, 1); !errors.Is(err, services.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
