// Package describer turns lyric lines into short visual descriptions.
//
// It is the only caller of the language model. Pre-warm workers and the
// line-completion path both funnel through Describe, which enforces a global
// in-flight ceiling, a minimum spacing between requests, and a per-song
// request budget so pre-warming a long song cannot run away with API cost.
package describer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"lyriscope/internal/logging"
	"lyriscope/internal/services"
	"lyriscope/internal/services/llm"
)

// Client is the completion surface the describer needs from the LLM layer.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Settings bound the describer's external call rate.
type Settings struct {
	MaxInflight        int
	MinRequestInterval time.Duration
	PerSongBudget      int
}

// Request identifies one lyric line to describe. SessionID scopes the
// budget: when it changes the per-song counter resets. Before/After carry
// neighboring lines so consecutive descriptions stay in one visual story.
type Request struct {
	SessionID string
	SongTitle string
	Line      string
	Before    string
	After     string
}

// Describer mediates all lyric-to-description calls.
type Describer struct {
	client Client
	logger *slog.Logger
	sem    *semaphore.Weighted
	minGap time.Duration
	budget int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	paceMu    sync.Mutex
	lastIssue time.Time

	budgetMu     sync.Mutex
	sessionID    string
	used         int
	budgetLogged bool
}

// New builds a describer over the given completion client.
func New(client Client, settings Settings, logger *slog.Logger) *Describer {
	if logger == nil {
		logger = logging.NewNop()
	}
	inflight := settings.MaxInflight
	if inflight <= 0 {
		inflight = 2
	}
	d := &Describer{
		client: client,
		logger: logging.NewComponentLogger(logger, "describer"),
		sem:    semaphore.NewWeighted(int64(inflight)),
		minGap: settings.MinRequestInterval,
		budget: settings.PerSongBudget,
		now:    time.Now,
	}
	d.sleep = func(ctx context.Context, delay time.Duration) error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	return d
}

// Describe resolves one lyric line to a visual description. Failures are
// wrapped with ErrTransient when a later attempt could succeed, ErrPermanent
// otherwise; the caller falls back to raw text either way.
func (d *Describer) Describe(ctx context.Context, req Request) (string, error) {
	if req.Line == "" {
		return "", services.Wrap(services.ErrValidation, "describer", "describe", "empty lyric line", nil)
	}
	if err := d.reserveBudget(req.SessionID); err != nil {
		return "", err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return "", services.Wrap(services.ErrTransient, "describer", "describe", "acquire request slot", err)
	}
	defer d.sem.Release(1)

	if err := d.pace(ctx); err != nil {
		return "", services.Wrap(services.ErrTransient, "describer", "describe", "request pacing interrupted", err)
	}

	started := d.now()
	raw, err := d.client.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		marker := services.ErrPermanent
		if llm.Retryable(err) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "describer", "describe", "language model request failed", err)
	}

	description := cleanDescription(raw)
	if description == "" {
		return "", services.Wrap(services.ErrPermanent, "describer", "describe", "model produced no usable description", nil)
	}

	d.logger.Debug("line described",
		logging.String("line", req.Line),
		logging.String("description", description),
		logging.Duration("elapsed", d.now().Sub(started)))
	return description, nil
}

// reserveBudget claims one request from the session budget, resetting the
// counter when a new session begins.
func (d *Describer) reserveBudget(sessionID string) error {
	if d.budget <= 0 {
		return nil
	}
	d.budgetMu.Lock()
	defer d.budgetMu.Unlock()

	if sessionID != d.sessionID {
		d.sessionID = sessionID
		d.used = 0
		d.budgetLogged = false
	}
	if d.used >= d.budget {
		if !d.budgetLogged {
			d.budgetLogged = true
			logging.WarnWithContext(d.logger, "per-song describe budget exhausted", "describe_budget_exhausted",
				logging.Int("budget", d.budget),
				logging.String(logging.FieldImpact, "remaining lines show raw lyric text"))
		}
		return services.Wrap(services.ErrPermanent, "describer", "describe", "per-song request budget exhausted", nil)
	}
	d.used++
	return nil
}

// pace spaces request issue times at least minGap apart across goroutines.
func (d *Describer) pace(ctx context.Context) error {
	if d.minGap <= 0 {
		return nil
	}
	d.paceMu.Lock()
	now := d.now()
	target := d.lastIssue.Add(d.minGap)
	if target.Before(now) {
		target = now
	}
	d.lastIssue = target
	d.paceMu.Unlock()

	if wait := target.Sub(now); wait > 0 {
		return d.sleep(ctx, wait)
	}
	return nil
}
