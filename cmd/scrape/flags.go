package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"shikihoscraper/config"
	"shikihoscraper/csvio"
)

// cliOptions are the settings that only exist on the command line
type cliOptions struct {
	input        string
	fromFailures string
	resume       bool
	resumeStore  bool
	appendOutput bool
}

// parseFlags loads the config named by --config and lets explicitly set flags override it
func parseFlags(args []string, stderr io.Writer) (*config.Config, cliOptions, error) {
	fs := flag.NewFlagSet("scrape", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaults := config.Defaults()
	var (
		configPath    = fs.String("config", "", "YAML config file (flags override it)")
		input         = fs.String("input", "codelist.csv", "input CSV path (with header 'code')")
		output        = fs.String("output", defaults.Output.Path, "output CSV path")
		sleep         = fs.Duration("sleep", defaults.Scrape.Sleep, "pause between requests")
		limit         = fs.Int("limit", 0, "limit number of codes (0=all)")
		maxIndustries = fs.Int("max-industries", defaults.Scrape.MaxIndustries, "maximum number of industries to keep (0=unlimited)")
		fields        = fs.String("fields", "", "comma-separated output fields (default: all)")
		timeout       = fs.Duration("timeout", defaults.Browser.Timeout, "action timeout")
		navTimeout    = fs.Duration("nav-timeout", defaults.Browser.NavTimeout, "navigation timeout")
		userAgent     = fs.String("user-agent", defaults.Browser.UserAgent, "custom User-Agent string")
		retries       = fs.Int("retries", 0, "number of retries on transient failures")
		retryBase     = fs.Duration("retry-base", defaults.Retry.Base, "base wait for exponential backoff")
		retryFactor   = fs.Float64("retry-factor", defaults.Retry.Factor, "multiplicative factor for backoff")
		retryMax      = fs.Duration("retry-max", defaults.Retry.Max, "maximum backoff per attempt")
		jitter        = fs.Float64("jitter-frac", 0, "fractional jitter for --sleep (0.3 => ±30%)")
		failures      = fs.String("failures", "", "path to write failed codes CSV (code,reason); empty disables")
		fromFailures  = fs.String("from-failures", "", "read input codes from a failures CSV instead of --input")
		resume        = fs.Bool("resume", false, "skip codes already present in --output; implies --append")
		resumeStore   = fs.Bool("resume-store", false, "with --resume, also skip codes already saved in --store")
		appendOutput  = fs.Bool("append", false, "append to --output if it exists (no header)")
		verbose       = fs.Bool("verbose", false, "enable more verbose logs")
		headed        = fs.Bool("headed", false, "run with browser UI (non-headless)")
		headless      = fs.Bool("headless", true, "run headless (default)")
		renderer      = fs.String("renderer", defaults.Scrape.Renderer, "page renderer: browser or http")
		storePath     = fs.String("store", "", "SQLite database recording every run (optional)")
	)
	if err := fs.Parse(args); err != nil {
		return nil, cliOptions{}, err
	}
	if fs.NArg() > 0 {
		return nil, cliOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, cliOptions{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Path = *output
		case "sleep":
			cfg.Scrape.Sleep = *sleep
		case "limit":
			cfg.Scrape.Limit = *limit
		case "max-industries":
			cfg.Scrape.MaxIndustries = *maxIndustries
		case "fields":
			cfg.Output.Fields = csvio.ParseFields(*fields)
		case "timeout":
			cfg.Browser.Timeout = *timeout
		case "nav-timeout":
			cfg.Browser.NavTimeout = *navTimeout
		case "user-agent":
			cfg.Browser.UserAgent = *userAgent
		case "retries":
			cfg.Retry.Attempts = *retries
		case "retry-base":
			cfg.Retry.Base = *retryBase
		case "retry-factor":
			cfg.Retry.Factor = *retryFactor
		case "retry-max":
			cfg.Retry.Max = *retryMax
		case "jitter-frac":
			cfg.Scrape.Jitter = *jitter
		case "failures":
			cfg.Output.Failures = *failures
		case "headed":
			cfg.Browser.Headless = !*headed
		case "headless":
			cfg.Browser.Headless = *headless
		case "renderer":
			cfg.Scrape.Renderer = *renderer
		case "store":
			cfg.Store.Path = *storePath
		}
	})
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, cliOptions{}, err
	}

	return cfg, cliOptions{
		input:        *input,
		fromFailures: *fromFailures,
		resume:       *resume,
		resumeStore:  *resumeStore,
		appendOutput: *appendOutput,
	}, nil
}

// durationString renders a duration flag value for log lines
func durationString(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
