package services_test

import (
	"context"
	"testing"

	"lyriscope/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSongID(ctx, "song-42")
	ctx = services.WithSongTitle(ctx, "Static Dreams")
	ctx = services.WithEpoch(ctx, 7)
	ctx = services.WithLineIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SongIDFromContext(ctx); !ok || id != "song-42" {
		t.Fatalf("unexpected song id: %v %v", id, ok)
	}
	if title, ok := services.SongTitleFromContext(ctx); !ok || title != "Static Dreams" {
		t.Fatalf("unexpected song title: %v %v", title, ok)
	}
	if epoch, ok := services.EpochFromContext(ctx); !ok || epoch != 7 {
		t.Fatalf("unexpected epoch: %v %v", epoch, ok)
	}
	if index, ok := services.LineIndexFromContext(ctx); !ok || index != 3 {
		t.Fatalf("unexpected line index: %v %v", index, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankAnnotationsPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSongID(ctx, "")
	ctx = services.WithLineIndex(ctx, -1)
	if _, ok := services.SongIDFromContext(ctx); ok {
		t.Fatal("expected no song id value")
	}
	if _, ok := services.LineIndexFromContext(ctx); ok {
		t.Fatal("expected no line index value")
	}
}

func TestEpochZeroRoundTrips(t *testing.T) {
	ctx := services.WithEpoch(context.Background(), 0)
	if epoch, ok := services.EpochFromContext(ctx); !ok || epoch != 0 {
		t.Fatalf("expected epoch 0 present, got %v %v", epoch, ok)
	}
}
