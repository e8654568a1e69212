// Command summary expands the business_composition column of a result CSV into
// ranked segment columns and writes *_summary.csv
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"shikihoscraper/csvio"
	"shikihoscraper/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input  = fs.String("input", "", "input CSV path, e.g. 20250914_result.csv (required)")
		output = fs.String("output", "", "explicit output path; derived from --input by default")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *input == "" {
		fmt.Fprintln(stderr, "Error: --input is required")
		fs.Usage()
		return 2
	}

	log := logger.Init(&logger.Config{Level: "info", Format: "text", Output: stderr})

	path := *output
	if path == "" {
		var standard bool
		path, standard = csvio.SummaryPath(*input)
		if !standard {
			log.Warn("input filename does not match YYYYMMDD_result.csv", "output", path)
		}
	}

	rows, err := csvio.SummarizeFile(*input, path)
	if err != nil {
		log.Error("summary failed", "error", err)
		return 1
	}
	log.Info("summary written", "rows", rows, "output", path)
	return 0
}
