package logging

import (
	"context"
	"log/slog"

	"lyriscope/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSongID is the standardized structured logging key for song session identifiers.
	FieldSongID = "song_id"
	// FieldSongTitle is the standardized structured logging key for song titles.
	FieldSongTitle = "song_title"
	// FieldLineIndex is the standardized structured logging key for lyric line indexes.
	FieldLineIndex = "line_index"
	// FieldEpoch is the standardized structured logging key for song epoch counters.
	FieldEpoch = "epoch"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator guidance on errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.SongIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSongID, id))
	}
	if epoch, ok := services.EpochFromContext(ctx); ok {
		fields = append(fields, slog.Uint64(FieldEpoch, epoch))
	}
	if index, ok := services.LineIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldLineIndex, index))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
