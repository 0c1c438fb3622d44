package display

import (
	"context"
	"log/slog"

	"lyriscope/internal/logging"
)

// LogSink records every applied update as a structured log line. It is the
// default target and doubles as a headless trace of what the visuals did.
type LogSink struct {
	logger *slog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink builds the log sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logging.NewComponentLogger(logger, "display")}
}

func (l *LogSink) Name() string { return TargetLog }

func (l *LogSink) Apply(_ context.Context, update Update) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldSongTitle, update.SongTitle),
		logging.Int(logging.FieldLineIndex, update.LineIndex),
		logging.String("lyric", update.LyricText),
		logging.String("description", update.Description),
	}
	if update.ImagePath != "" {
		attrs = append(attrs,
			logging.String("image", update.ImagePath),
			logging.Float64("score", update.Score))
	}
	if update.Fallback {
		attrs = append(attrs, logging.Bool("fallback", true))
	}
	l.logger.Info("display update", logging.Args(attrs...)...)
	return nil
}
