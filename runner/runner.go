// Package runner drives the extractor over a list of security codes with retries,
// pacing and resume support
package runner

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"shikihoscraper/dom"
	"shikihoscraper/profile"
	"shikihoscraper/tokens"
)

// Renderer produces the rendered profile page of a code
type Renderer interface {
	Render(ctx context.Context, code string) (dom.Page, error)
}

// Sink receives successfully extracted records
type Sink interface {
	Write(rec profile.Record) error
}

// FailureSink receives codes that could not be scraped
type FailureSink interface {
	Fail(code, reason string) error
}

// Options configures a Runner
type Options struct {
	Retry Retry
	// Sleep is the pause after each processed code
	Sleep  time.Duration
	Jitter float64
	// Skip holds codes already processed by an earlier run
	Skip   tokens.Set
	Logger *slog.Logger
}

// Runner scrapes codes one after another
type Runner struct {
	renderer Renderer
	engine   *profile.Engine
	sinks    []Sink
	failures []FailureSink
	opts     Options
	log      *slog.Logger

	sleep func(context.Context, time.Duration) error
	rand  func() float64
	now   func() time.Time
}

// New creates a runner writing records to sink; failures may be nil
func New(renderer Renderer, engine *profile.Engine, sink Sink, failures FailureSink, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		renderer: renderer,
		engine:   engine,
		opts:     opts,
		log:      log,
		sleep:    sleepContext,
		rand:     mrand.Float64,
		now:      time.Now,
	}
	r.AddSink(sink)
	if failures != nil {
		r.failures = append(r.failures, failures)
	}
	return r
}

// AddSink registers another record destination
func (r *Runner) AddSink(s Sink) {
	if s != nil {
		r.sinks = append(r.sinks, s)
	}
}

// AddFailureSink registers another failure destination
func (r *Runner) AddFailureSink(s FailureSink) {
	if s != nil {
		r.failures = append(r.failures, s)
	}
}

// Summary is the outcome of a run
type Summary struct {
	RunID   string
	Success int
	Failure int
	Skipped int
	Total   int
	Failed  []string
	Elapsed time.Duration
}

// NewRunID returns a sortable unique run identifier
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
}

// Scrape renders one code and extracts its record
func Scrape(ctx context.Context, renderer Renderer, engine *profile.Engine, code string) (profile.Record, error) {
	page, err := renderer.Render(ctx, code)
	if err != nil {
		return profile.Record{}, err
	}
	defer page.Close()

	rec := engine.Extract(page)
	rec.Code = code
	return rec, nil
}

// Run processes codes in order. It stops early only when ctx is done or a sink
// fails; scrape failures are recorded and the run moves on.
func (r *Runner) Run(ctx context.Context, runID string, codes []string) (Summary, error) {
	if runID == "" {
		runID = NewRunID()
	}
	log := r.log.With("run_id", runID)
	start := r.now()
	sum := Summary{RunID: runID, Total: len(codes)}

	finish := func(err error) (Summary, error) {
		sum.Elapsed = r.now().Sub(start)
		r.report(log, sum)
		return sum, err
	}

	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		if r.opts.Skip.Has(code) {
			log.Debug(fmt.Sprintf("[%d/%d] skip %s (resume)", i+1, len(codes), code))
			sum.Skipped++
			continue
		}
		log.Info(fmt.Sprintf("[%d/%d] fetching %s", i+1, len(codes), code))

		rec, err := r.scrapeWithRetry(ctx, log, code)
		switch {
		case err == nil:
			if err := r.write(rec); err != nil {
				return finish(err)
			}
			sum.Success++
		case ctx.Err() != nil:
			return finish(ctx.Err())
		default:
			r.fail(log, code, err)
			sum.Failure++
			sum.Failed = append(sum.Failed, code)
		}

		if err := r.sleep(ctx, Pause(r.opts.Sleep, r.opts.Jitter, r.rand)); err != nil {
			return finish(err)
		}
	}
	return finish(nil)
}

func (r *Runner) scrapeWithRetry(ctx context.Context, log *slog.Logger, code string) (profile.Record, error) {
	for attempt := 0; ; attempt++ {
		rec, err := Scrape(ctx, r.renderer, r.engine, code)
		if err == nil {
			return rec, nil
		}
		if !Retryable(err) || attempt >= r.opts.Retry.Attempts || ctx.Err() != nil {
			return rec, err
		}

		wait := r.opts.Retry.Backoff(attempt, r.rand)
		log.Debug("retrying",
			"code", code,
			"attempt", attempt+1,
			"retries", r.opts.Retry.Attempts,
			"wait", wait.Round(10*time.Millisecond),
			"error", err,
		)
		if err := r.sleep(ctx, wait); err != nil {
			return rec, err
		}
	}
}

func (r *Runner) write(rec profile.Record) error {
	for _, s := range r.sinks {
		if err := s.Write(rec); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", rec.Code, err)
		}
	}
	return nil
}

// fail records a failed code; failure sink errors are logged and ignored
func (r *Runner) fail(log *slog.Logger, code string, err error) {
	reason := Reason(err)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		log.Warn("non-retryable failure", "code", code, "error", err)
	case reason == "timeout":
		log.Warn("timeout", "code", code)
	default:
		log.Warn("scrape failed", "code", code, "error", err)
	}

	for _, s := range r.failures {
		if ferr := s.Fail(code, reason); ferr != nil {
			log.Warn("failed to record failure", "code", code, "error", ferr)
		}
	}
}

func (r *Runner) report(log *slog.Logger, sum Summary) {
	switch {
	case sum.Failure == 0:
		log.Info("completed successfully")
	case len(sum.Failed) <= 20:
		log.Info("completed with failures", "count", sum.Failure, "codes", strings.Join(sum.Failed, ", "))
	default:
		log.Info("completed with failures", "count", sum.Failure)
	}

	log.Info("summary",
		"success", sum.Success,
		"failure", sum.Failure,
		"skipped", sum.Skipped,
		"total", sum.Total,
		"elapsed", formatElapsed(sum.Elapsed),
	)
}

func formatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
