package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"shikihoscraper/profile"
)

// rowWriter writes CSV rows and flushes after each one so partial runs survive a crash
type rowWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  io.WriteCloser
	csv  *csv.Writer
}

// openRows opens path for writing. An existing file is appended to when appendMode
// is set and the header is skipped; otherwise the file is truncated and starts with
// a BOM and the header.
func openRows(path string, header []string, appendMode bool) (*rowWriter, error) {
	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if appendMode && exists {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		return &rowWriter{file: f, csv: csv.NewWriter(f)}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
	w := &rowWriter{file: f, enc: enc, csv: csv.NewWriter(enc)}
	if err := w.write(header); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *rowWriter) write(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.csv.Write(row); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *rowWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	err := w.csv.Error()
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// RecordWriter writes records as CSV rows with a fixed column selection
type RecordWriter struct {
	rows   *rowWriter
	fields []string
}

// CreateRecords opens a result CSV for the given columns
func CreateRecords(path string, fields []string, appendMode bool) (*RecordWriter, error) {
	fields = SelectFields(fields)
	rows, err := openRows(path, fields, appendMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", path, err)
	}
	return &RecordWriter{rows: rows, fields: fields}, nil
}

// Fields returns the selected columns
func (w *RecordWriter) Fields() []string {
	return w.fields
}

// Write appends one record
func (w *RecordWriter) Write(rec profile.Record) error {
	return w.rows.write(rec.Values(w.fields))
}

// Close flushes and closes the file
func (w *RecordWriter) Close() error {
	return w.rows.Close()
}

// FailureWriter records failed codes as code,reason rows
type FailureWriter struct {
	rows *rowWriter
}

// CreateFailures opens a failures CSV, appending when it already exists
func CreateFailures(path string) (*FailureWriter, error) {
	rows, err := openRows(path, []string{profile.FieldCode, "reason"}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open failures %s: %w", path, err)
	}
	return &FailureWriter{rows: rows}, nil
}

// Fail appends one failure
func (w *FailureWriter) Fail(code, reason string) error {
	return w.rows.write([]string{code, reason})
}

// Close flushes and closes the file
func (w *FailureWriter) Close() error {
	return w.rows.Close()
}
