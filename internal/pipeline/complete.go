package pipeline

import (
	"context"
	"errors"
	"time"

	"lyriscope/internal/analysis"
	"lyriscope/internal/display"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
	"lyriscope/internal/services"
)

// completeLine resolves one observed line: bounded wait on the cache, image
// lookup, display apply. When the bounded wait fell back to raw text, the
// goroutine stays on the entry and silently upgrades the display once the
// real description lands, provided the line is still the current one.
func (o *Orchestrator) completeLine(ctx context.Context, epoch uint64, title string, lineIdx int, text string) {
	defer o.taskWG.Done()

	res := o.cache.GetOrAwait(ctx, text, o.lineWait)
	if ctx.Err() != nil {
		return
	}
	o.apply(ctx, epoch, title, lineIdx, text, res)

	if !res.Fallback {
		return
	}
	upgraded, err := o.cache.Await(ctx, text)
	if err != nil || upgraded.Fallback {
		return
	}
	o.apply(ctx, epoch, title, lineIdx, text, upgraded)
}

// apply pushes a resolved line to the display sinks iff the (epoch, line)
// pair is still current. An empty description is the blank-line sentinel:
// the lyric clears but the last image stays up.
func (o *Orchestrator) apply(ctx context.Context, epoch uint64, title string, lineIdx int, text string, res analysis.Result) {
	if !o.current(epoch, lineIdx) {
		o.logger.Debug("discarding stale completion",
			logging.Int(logging.FieldLineIndex, lineIdx),
			logging.String("text", text),
			logging.String(logging.FieldEventType, "stale_completion_discarded"),
		)
		return
	}

	update := display.Update{
		SongTitle:   title,
		LineIndex:   lineIdx,
		LyricText:   text,
		Description: res.Description,
		Fallback:    res.Fallback,
	}
	if res.Description != "" {
		if match, ok := o.lookup(ctx, res.Description); ok {
			update.ImagePath = match.Path
			update.Score = match.Score
		}
	}

	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	if !o.current(epoch, lineIdx) {
		return
	}
	if update.ImagePath == "" {
		update.ImagePath = o.display.ImagePath
		update.Score = o.display.Score
	}
	o.display = DisplayState{
		SongTitle:   update.SongTitle,
		LineIndex:   update.LineIndex,
		LyricText:   update.LyricText,
		Description: update.Description,
		ImagePath:   update.ImagePath,
		Score:       update.Score,
		Fallback:    update.Fallback,
		UpdatedAt:   time.Now(),
	}
	if err := o.sink.Apply(ctx, update); err != nil && ctx.Err() == nil {
		o.setLastError(err)
		logging.WarnWithContext(o.logger, "display update failed", "display_apply_failed",
			logging.Error(err),
			logging.Int(logging.FieldLineIndex, lineIdx),
			logging.String(logging.FieldErrorHint, "check the configured display targets"),
			logging.String(logging.FieldImpact, "display is out of date until the next line"),
		)
	}
}

// lookup encodes a description and finds its best index match. Failures
// degrade to text-only output rather than stopping the pipeline.
func (o *Orchestrator) lookup(ctx context.Context, description string) (index.Match, bool) {
	if o.encoder == nil || o.index == nil {
		return index.Match{}, false
	}

	vector, err := o.encoder.Encode(ctx, description)
	if err != nil {
		if ctx.Err() == nil {
			o.setLastError(err)
			logging.WarnWithContext(o.logger, "description encode failed", "encode_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the embedding API key and endpoint"),
				logging.String(logging.FieldImpact, "line shown without an image"),
			)
		}
		return index.Match{}, false
	}

	matches, err := o.index.Search(ctx, vector, o.topK)
	if err != nil {
		if ctx.Err() == nil {
			o.setLastError(err)
			o.markIndexDown(ctx, err)
		}
		return index.Match{}, false
	}
	o.markIndexUp()
	if len(matches) == 0 {
		o.logger.Debug("no index match for description",
			logging.String("description", description),
		)
		return index.Match{}, false
	}
	return matches[0], true
}

// current reports whether a completion for (epoch, lineIdx) may still apply.
func (o *Orchestrator) current(epoch uint64, lineIdx int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state == StateTracking && o.epoch == epoch && o.lineIndex == lineIdx
}

// markIndexDown warns and notifies once when the index stops answering, then
// stays quiet until markIndexUp observes a successful search.
func (o *Orchestrator) markIndexDown(ctx context.Context, err error) {
	o.mu.Lock()
	wasDown := o.indexDown
	o.indexDown = true
	o.mu.Unlock()
	if wasDown {
		return
	}
	hint := "check the index backend configuration"
	if errors.Is(err, services.ErrIndexUnavailable) {
		hint = "verify the index exists and the backend is reachable"
	}
	logging.WarnWithContext(o.logger, "image lookup unavailable", "index_down",
		logging.Error(err),
		logging.Alert("index_down"),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "lyrics continue without images"),
	)
	o.notifyAsync(ctx, "image lookup outage notification", func(ctx context.Context) error {
		return o.notifier.NotifyError(ctx, err, "image lookup")
	})
}

func (o *Orchestrator) markIndexUp() {
	o.mu.Lock()
	wasDown := o.indexDown
	o.indexDown = false
	o.mu.Unlock()
	if wasDown {
		o.logger.Info("image lookup recovered",
			logging.String(logging.FieldEventType, "index_recovered"),
		)
	}
}
