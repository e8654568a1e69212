// Package csvio reads code lists and writes result, failure and summary CSV files.
// Files are UTF-8 with a byte order mark so spreadsheet tools pick the right encoding.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"shikihoscraper/profile"
	"shikihoscraper/tokens"
)

// ErrMissingColumn is returned when a required header is absent
var ErrMissingColumn = errors.New("missing required column")

// table reads a CSV with a header row, tolerating a leading BOM
type table struct {
	r      *csv.Reader
	header []string
	index  map[string]int
}

func newTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{r: cr, header: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t, nil
}

func (t *table) has(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *table) require(names ...string) error {
	for _, name := range names {
		if !t.has(name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// next returns the next row, or io.EOF
func (t *table) next() ([]string, error) {
	row, err := t.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read row: %w", err)
	}
	return row, nil
}

func (t *table) get(row []string, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// codes collects the trimmed non-empty code column, optionally without repeats
func (t *table) codes(dedupe bool) ([]string, error) {
	if err := t.require(profile.FieldCode); err != nil {
		return nil, err
	}
	var out []string
	seen := tokens.NewSet()
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		code := strings.TrimSpace(t.get(row, profile.FieldCode))
		if code == "" || (dedupe && seen.Has(code)) {
			continue
		}
		seen.Add(code)
		out = append(out, code)
	}
}

func readCodesFile(path string, dedupe bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := newTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	codes, err := t.codes(dedupe)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return codes, nil
}

// ReadCodes reads the code column of a code list, keeping repeats
func ReadCodes(path string) ([]string, error) {
	return readCodesFile(path, false)
}

// ReadFailureCodes reads the codes of a failures CSV, first occurrence only
func ReadFailureCodes(path string) ([]string, error) {
	return readCodesFile(path, true)
}

// ReadProcessed returns the codes already present in a result CSV. A missing file
// or a file without a code column gives an empty set.
func ReadProcessed(path string) (tokens.Set, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return tokens.NewSet(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := newTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !t.has(profile.FieldCode) {
		return tokens.NewSet(), nil
	}
	codes, err := t.codes(true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tokens.NewSet(codes...), nil
}

// SelectFields keeps the known record columns of requested in the given order.
// Nothing known gives every column; code is always present and put first when missing.
func SelectFields(requested []string) []string {
	var out []string
	for _, f := range requested {
		f = strings.TrimSpace(f)
		if slices.Contains(profile.Fields, f) && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return slices.Clone(profile.Fields)
	}
	if !slices.Contains(out, profile.FieldCode) {
		out = slices.Insert(out, 0, profile.FieldCode)
	}
	return out
}

// ParseFields splits a comma-separated --fields value
func ParseFields(s string) []string {
	return SelectFields(strings.Split(s, ","))
}
