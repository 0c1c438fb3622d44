package services

import "context"

type contextKey string

const (
	songIDKey    contextKey = "song_id"
	songTitleKey contextKey = "song_title"
	epochKey     contextKey = "epoch"
	lineIndexKey contextKey = "line_index"
	requestIDKey contextKey = "request_id"
)

// WithSongID annotates context with the active song session identifier.
func WithSongID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, songIDKey, id)
}

// SongIDFromContext extracts the song session identifier if present.
func SongIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(songIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSongTitle annotates context with the active song title.
func WithSongTitle(ctx context.Context, title string) context.Context {
	if title == "" {
		return ctx
	}
	return context.WithValue(ctx, songTitleKey, title)
}

// SongTitleFromContext returns the song title if present.
func SongTitleFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(songTitleKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEpoch annotates context with the song epoch counter.
func WithEpoch(ctx context.Context, epoch uint64) context.Context {
	return context.WithValue(ctx, epochKey, epoch)
}

// EpochFromContext extracts the song epoch if present.
func EpochFromContext(ctx context.Context) (uint64, bool) {
	v := ctx.Value(epochKey)
	if v == nil {
		return 0, false
	}
	if val, ok := v.(uint64); ok {
		return val, true
	}
	return 0, false
}

// WithLineIndex annotates context with the lyric line index.
func WithLineIndex(ctx context.Context, index int) context.Context {
	if index < 0 {
		return ctx
	}
	return context.WithValue(ctx, lineIndexKey, index)
}

// LineIndexFromContext extracts the lyric line index if present.
func LineIndexFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(lineIndexKey)
	if v == nil {
		return 0, false
	}
	if val, ok := v.(int); ok {
		return val, true
	}
	return 0, false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
