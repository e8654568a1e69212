// Command scrape extracts company profiles for every code in a CSV list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"shikihoscraper/csvio"
	"shikihoscraper/logger"
	"shikihoscraper/runner"
	"shikihoscraper/store"
	"shikihoscraper/tokens"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg.Log.Output = stderr
	log := logger.Init(&cfg.Log)

	codes, err := loadCodes(opts)
	if err != nil {
		log.Error("failed to read codes", "error", err)
		return 1
	}
	if opts.fromFailures != "" {
		log.Debug("loaded codes from failures", "count", len(codes), "path", opts.fromFailures)
	}
	if cfg.Scrape.Limit > 0 && len(codes) > cfg.Scrape.Limit {
		codes = codes[:cfg.Scrape.Limit]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(ctx, cfg.Store.Path)
		if err != nil {
			log.Error("failed to open store", "path", cfg.Store.Path, "error", err)
			return 1
		}
		defer st.Close()
	}

	var skip tokens.Set
	if opts.resume {
		var ledger *store.Store
		if opts.resumeStore {
			ledger = st
		}
		skip = resumeSet(ctx, log, cfg.Output.Path, ledger)
	}

	appendOutput := opts.appendOutput
	if opts.resume && !appendOutput {
		// truncating would drop the rows the resume set skips
		log.Warn("resume implies append, keeping existing output", "path", cfg.Output.Path)
		appendOutput = true
	}

	records, err := csvio.CreateRecords(cfg.Output.Path, cfg.Output.Fields, appendOutput)
	if err != nil {
		log.Error("failed to open output", "error", err)
		return 1
	}
	defer records.Close()

	renderer, shutdown := cfg.Renderer(log)
	defer shutdown()

	r := runner.New(renderer, cfg.Engine(log), records, nil, runner.Options{
		Retry:  cfg.RetryPolicy(),
		Sleep:  cfg.Scrape.Sleep,
		Jitter: cfg.Scrape.Jitter,
		Skip:   skip,
		Logger: log,
	})

	if cfg.Output.Failures != "" {
		failures, err := csvio.CreateFailures(cfg.Output.Failures)
		if err != nil {
			log.Warn("cannot open failures CSV", "path", cfg.Output.Failures, "error", err)
		} else {
			defer failures.Close()
			r.AddFailureSink(failures)
		}
	}

	runID := runner.NewRunID()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	if st != nil {
		if err := st.BeginRun(ctx, runID, len(codes)); err != nil {
			log.Error("failed to register run", "error", err)
			return 1
		}
		sink := st.Sink(ctx, runID)
		r.AddSink(sink)
		r.AddFailureSink(sink)
	}

	log.Debug("starting run",
		"run_id", runID,
		"codes", len(codes),
		"output", cfg.Output.Path,
		"renderer", cfg.Scrape.Renderer,
		"sleep", durationString(cfg.Scrape.Sleep),
		"nav_timeout", durationString(cfg.Browser.NavTimeout),
	)

	sum, err := r.Run(ctx, runID, codes)
	if st != nil {
		// the run context may be cancelled already
		if ferr := st.FinishRun(context.WithoutCancel(ctx), runID, sum.Success, sum.Failure, sum.Skipped); ferr != nil {
			log.Warn("failed to finish run", "error", ferr)
		}
	}
	if sum.Failure > 0 && cfg.Output.Failures != "" {
		log.Info("failure list written", "path", cfg.Output.Failures)
	}
	if err != nil {
		log.Error("run aborted", "error", err)
		return 1
	}
	return 0
}

func loadCodes(opts cliOptions) ([]string, error) {
	if opts.fromFailures != "" {
		return csvio.ReadFailureCodes(opts.fromFailures)
	}
	return csvio.ReadCodes(opts.input)
}

// resumeSet collects codes already written to the output CSV or the store
func resumeSet(ctx context.Context, log *slog.Logger, output string, st *store.Store) tokens.Set {
	done, err := csvio.ReadProcessed(output)
	if err != nil {
		log.Warn("failed to read existing output for resume", "error", err)
		done = tokens.NewSet()
	}
	if st != nil {
		stored, err := st.Processed(ctx)
		if err != nil {
			log.Warn("failed to read store for resume", "error", err)
		} else {
			done = done.Union(stored)
		}
	}
	log.Debug("resume enabled", "processed", done.Len())
	return done
}
