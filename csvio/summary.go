package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"shikihoscraper/composition"
	"shikihoscraper/profile"
)

var datedResult = regexp.MustCompile(`^(\d{8})_result\.csv$`)

// SummaryPath derives the summary file name of a result CSV:
// YYYYMMDD_result.csv and *_result.csv become *_summary.csv next to the input.
// Any other name gives <path without extension>_summary.csv and standard=false.
func SummaryPath(input string) (path string, standard bool) {
	dir, base := filepath.Split(input)
	if m := datedResult.FindStringSubmatch(base); m != nil {
		return filepath.Join(dir, m[1]+"_summary.csv"), true
	}
	if root, ok := strings.CutSuffix(base, "_result.csv"); ok {
		return filepath.Join(dir, root+"_summary.csv"), true
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_summary.csv", false
}

// Summarize copies a result CSV from r to w, inserting the derived business
// composition columns right after themes. Every record column must be present.
func Summarize(r io.Reader, w io.Writer) (rows int, err error) {
	t, err := newTable(r)
	if err != nil {
		return 0, err
	}
	if err := t.require(profile.Fields...); err != nil {
		return 0, err
	}

	header := composition.InsertAfter(t.header, composition.AnchorColumn, composition.ColumnNames)
	enc := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	out := csv.NewWriter(enc)
	if err := out.Write(header); err != nil {
		return 0, err
	}

	derivedIndex := make(map[string]int, len(composition.ColumnNames))
	for i, name := range composition.ColumnNames {
		derivedIndex[name] = i
	}

	record := make([]string, len(header))
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}

		text := strings.TrimSpace(t.get(row, profile.FieldBusinessComposition))
		derived := composition.Parse(text).Columns()
		for i, name := range header {
			if j, ok := derivedIndex[name]; ok {
				record[i] = derived[j]
			} else {
				record[i] = t.get(row, name)
			}
		}
		if err := out.Write(record); err != nil {
			return rows, err
		}
		rows++
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return rows, err
	}
	return rows, enc.Close()
}

// SummarizeFile converts the result CSV at input into output
func SummarizeFile(input, output string) (rows int, err error) {
	in, err := os.Open(input)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return 0, err
	}

	rows, err = Summarize(in, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return rows, fmt.Errorf("summarize %s: %w", input, err)
	}
	return rows, nil
}
