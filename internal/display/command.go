package display

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

// CommandSink opens matched images with an external viewer command
// (xdg-open by default). Updates without an image, or repeating the image
// already shown, spawn nothing.
type CommandSink struct {
	command string
	logger  *slog.Logger
	run     func(ctx context.Context, name string, args ...string) error

	mu       sync.Mutex
	lastPath string
}

var _ Sink = (*CommandSink)(nil)

// NewCommandSink builds a viewer sink for the given command line. Extra
// arguments may be embedded in the command string; the image path is always
// appended last.
func NewCommandSink(command string, logger *slog.Logger) *CommandSink {
	if strings.TrimSpace(command) == "" {
		command = "xdg-open"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := &CommandSink{
		command: command,
		logger:  logging.NewComponentLogger(logger, "display"),
	}
	sink.run = sink.spawn
	return sink
}

func (c *CommandSink) Name() string { return TargetCommand }

// Apply launches the viewer for a newly matched image.
func (c *CommandSink) Apply(ctx context.Context, update Update) error {
	if update.ImagePath == "" {
		return nil
	}

	c.mu.Lock()
	if update.ImagePath == c.lastPath {
		c.mu.Unlock()
		return nil
	}
	c.lastPath = update.ImagePath
	c.mu.Unlock()

	fields := strings.Fields(c.command)
	name := fields[0]
	args := append(fields[1:], update.ImagePath)
	if err := c.run(ctx, name, args...); err != nil {
		return services.Wrap(services.ErrTransient, "display", "command",
			"launch viewer command", err)
	}
	c.logger.Debug("opened image viewer",
		logging.String("command", name),
		logging.String("image", update.ImagePath))
	return nil
}

// spawn starts the viewer detached; the process is reaped in the background
// so a long-lived viewer never blocks the pipeline.
func (c *CommandSink) spawn(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
