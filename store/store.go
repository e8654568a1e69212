// Package store keeps scraped records and run history in SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"shikihoscraper/composition"
	"shikihoscraper/profile"
	"shikihoscraper/tokens"
)

// Store is a SQLite-backed record store
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens a SQLite database and creates the schema. The pragmas ride on the DSN
// so every pooled connection gets WAL mode and enforced foreign keys.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	return path + "?" + q.Encode()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	total INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 0,
	failure INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS records (
	code TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	market TEXT NOT NULL,
	feature TEXT NOT NULL,
	business_composition TEXT NOT NULL,
	industries TEXT NOT NULL,
	themes TEXT NOT NULL,
	overseas INTEGER NOT NULL DEFAULT 0,
	run_id TEXT,
	scraped_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS segments (
	code TEXT NOT NULL,
	rank INTEGER NOT NULL,
	name TEXT NOT NULL,
	sales INTEGER NOT NULL,
	profit INTEGER NOT NULL,
	PRIMARY KEY(code, rank),
	FOREIGN KEY(code) REFERENCES records(code) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS failures (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	code TEXT NOT NULL,
	reason TEXT NOT NULL,
	failed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_code ON failures(code);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// BeginRun registers a batch run
func (s *Store) BeginRun(ctx context.Context, runID string, total int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, total) VALUES (?, ?, ?)`,
		runID, s.timestamp(), total)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the outcome of a run
func (s *Store) FinishRun(ctx context.Context, runID string, success, failure, skipped int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, failure = ?, skipped = ? WHERE id = ?`,
		s.timestamp(), success, failure, skipped, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// Save upserts a record together with its parsed business segments
func (s *Store) Save(ctx context.Context, runID string, rec profile.Record) error {
	summary := composition.Parse(rec.BusinessComposition)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO records (code, company_name, market, feature, business_composition, industries, themes, overseas, run_id, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
	company_name = excluded.company_name,
	market = excluded.market,
	feature = excluded.feature,
	business_composition = excluded.business_composition,
	industries = excluded.industries,
	themes = excluded.themes,
	overseas = excluded.overseas,
	run_id = excluded.run_id,
	scraped_at = excluded.scraped_at`,
		rec.Code, rec.CompanyName, rec.Market, rec.Feature, rec.BusinessComposition,
		rec.Industries, rec.Themes, summary.Overseas, nullable(runID), s.timestamp())
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.Code, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE code = ?`, rec.Code); err != nil {
		return fmt.Errorf("clear segments %s: %w", rec.Code, err)
	}
	for i, seg := range summary.Segments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO segments (code, rank, name, sales, profit) VALUES (?, ?, ?, ?, ?)`,
			rec.Code, i+1, seg.Name, seg.Sales, seg.Profit)
		if err != nil {
			return fmt.Errorf("save segment %s/%d: %w", rec.Code, i+1, err)
		}
	}

	return tx.Commit()
}

// Fail records a failed code
func (s *Store) Fail(ctx context.Context, runID, code, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (run_id, code, reason, failed_at) VALUES (?, ?, ?, ?)`,
		nullable(runID), code, reason, s.timestamp())
	if err != nil {
		return fmt.Errorf("save failure %s: %w", code, err)
	}
	return nil
}

// Record returns the stored record of code
func (s *Store) Record(ctx context.Context, code string) (profile.Record, bool, error) {
	var rec profile.Record
	err := s.db.QueryRowContext(ctx, `
SELECT code, company_name, market, feature, business_composition, industries, themes
FROM records WHERE code = ?`, code).Scan(
		&rec.Code, &rec.CompanyName, &rec.Market, &rec.Feature,
		&rec.BusinessComposition, &rec.Industries, &rec.Themes)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Record{}, false, nil
	}
	if err != nil {
		return profile.Record{}, false, fmt.Errorf("load record %s: %w", code, err)
	}
	return rec, true, nil
}

// Segments returns the stored business segments of code in rank order
func (s *Store) Segments(ctx context.Context, code string) ([]composition.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, sales, profit FROM segments WHERE code = ? ORDER BY rank`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []composition.Segment
	for rows.Next() {
		var seg composition.Segment
		if err := rows.Scan(&seg.Name, &seg.Sales, &seg.Profit); err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Processed returns every code with a stored record
func (s *Store) Processed(ctx context.Context) (tokens.Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := tokens.NewSet()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out.Add(code)
	}
	return out, rows.Err()
}

// Sink binds the store to one run so it can receive the runner's records and failures
func (s *Store) Sink(ctx context.Context, runID string) *RunSink {
	return &RunSink{ctx: ctx, store: s, runID: runID}
}

// RunSink writes records and failures of a single run
type RunSink struct {
	ctx   context.Context
	store *Store
	runID string
}

func (r *RunSink) Write(rec profile.Record) error {
	return r.store.Save(r.ctx, r.runID, rec)
}

func (r *RunSink) Fail(code, reason string) error {
	return r.store.Fail(r.ctx, r.runID, code, reason)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
