// Package display surfaces matched images and lyric text to the configured
// targets.
//
// The pipeline fires one Update per applied lyric line. Sinks are
// independent: a viewer command opening the matched image, an HTTP push to a
// visual host, and a structured log line. Failures in one sink never block
// another; the pipeline logs and moves on.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lyriscope/internal/config"
	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

// Update carries everything a sink may want to show for one lyric line.
type Update struct {
	SongTitle   string
	LineIndex   int
	LyricText   string
	Description string
	ImagePath   string
	Score       float64
	Fallback    bool
}

// Sink applies display updates to one output target.
type Sink interface {
	Name() string
	Apply(ctx context.Context, update Update) error
}

// Target names accepted in configuration.
const (
	TargetCommand = "command"
	TargetHTTP    = "http"
	TargetLog     = "log"
)

// NewSinks builds the sinks listed in cfg.Display.Targets.
func NewSinks(cfg *config.Config, logger *slog.Logger) ([]Sink, error) {
	var sinks []Sink
	for _, target := range cfg.Display.Targets {
		switch strings.ToLower(strings.TrimSpace(target)) {
		case TargetCommand:
			sinks = append(sinks, NewCommandSink(cfg.Display.Command, logger))
		case TargetHTTP:
			sink, err := NewHTTPPushSink(cfg.Display.HTTPEndpoint, cfg.Display.HTTPTimeoutSeconds)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case TargetLog:
			sinks = append(sinks, NewLogSink(logger))
		case "":
		default:
			return nil, services.Wrap(services.ErrConfiguration, "display", "new",
				fmt.Sprintf("unknown display target %q", target), nil)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, NewLogSink(logger))
	}
	return sinks, nil
}

// Fanout applies an update to every sink and aggregates failures. It is
// itself a Sink so the pipeline holds a single handle.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

var _ Sink = (*Fanout)(nil)

// NewFanout wraps sinks into one. A nil logger falls back to a no-op.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logging.NewComponentLogger(logger, "display")}
}

func (f *Fanout) Name() string { return "fanout" }

// Apply forwards the update to all sinks. Every sink runs even when earlier
// ones fail; the combined error is returned for the caller to log.
func (f *Fanout) Apply(ctx context.Context, update Update) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Apply(ctx, update); err != nil {
			f.logger.Warn("display sink failed",
				logging.String("sink", sink.Name()),
				logging.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Sinks returns the wrapped sinks, primarily for status reporting.
func (f *Fanout) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, sink := range f.sinks {
		names = append(names, sink.Name())
	}
	return names
}
