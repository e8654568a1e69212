package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const bom = "\ufeff"

func TestParseFlagsOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte("scrape:\n  sleep: 5s\n  max_industries: 5\nretry:\n  attempts: 4\n"), 0o644)

	cfg, opts, err := parseFlags([]string{
		"-config", cfgPath,
		"-sleep", "250ms",
		"-headed",
		"-fields", "themes",
		"-resume",
		"-input", "codes.csv",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if cfg.Scrape.Sleep != 250*time.Millisecond {
		t.Errorf("sleep = %v", cfg.Scrape.Sleep)
	}
	if cfg.Scrape.MaxIndustries != 5 || cfg.Retry.Attempts != 4 {
		t.Errorf("config values lost: %+v %+v", cfg.Scrape, cfg.Retry)
	}
	if cfg.Browser.Headless {
		t.Error("headed should disable headless")
	}
	if got := strings.Join(cfg.Output.Fields, ","); got != "code,themes" {
		t.Errorf("fields = %s", got)
	}
	if !opts.resume || opts.input != "codes.csv" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := [][]string{
		{"-renderer", "curl"},
		{"-retries", "-1"},
		{"-sleep", "fast"},
		{"stray"},
	}
	for _, args := range tests {
		if _, _, err := parseFlags(args, io.Discard); err == nil {
			t.Errorf("parseFlags(%v) should fail", args)
		}
	}
}

const page = `<html><body>
<h1>%s</h1>
<dl>
  <dt>特色</dt><dd>テスト</dd>
  <dt>連結事業</dt><dd>A60(10)、B40(5)</dd>
  <dt>市場テーマ</dt><dd><a>EV</a></dd>
</dl>
</body></html>`

func TestRunWritesResultsAndFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := filepath.Base(r.URL.Path)
		if code == "0000" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, page, "会社"+code)
	}))
	defer ts.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "codelist.csv")
	output := filepath.Join(dir, "result.csv")
	failures := filepath.Join(dir, "failures.csv")
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(input, []byte("code\n1001\n0000\n1002\n"), 0o644)
	os.WriteFile(cfgPath, []byte(fmt.Sprintf("scrape:\n  renderer: http\n  url_template: %s/stocks/%%s\n  sleep: 0s\n", ts.URL)), 0o644)

	var stderr bytes.Buffer
	code := run([]string{
		"-config", cfgPath,
		"-input", input,
		"-output", output,
		"-failures", failures,
		"-fields", "company_name,business_composition",
		"-store", filepath.Join(dir, "runs.db"),
	}, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, stderr.String())
	}

	data, _ := os.ReadFile(output)
	want := bom + "code,company_name,business_composition\n" +
		"1001,会社1001,A60(10)、B40(5)\n" +
		"1002,会社1002,A60(10)、B40(5)\n"
	if string(data) != want {
		t.Errorf("result =\n%q\nwant\n%q", data, want)
	}

	data, _ = os.ReadFile(failures)
	if want := bom + "code,reason\n0000,HTTP 404 for code 0000\n"; string(data) != want {
		t.Errorf("failures = %q, want %q", data, want)
	}

	if !strings.Contains(stderr.String(), "success=2 failure=1 skipped=0 total=3") {
		t.Errorf("summary line missing:\n%s", stderr.String())
	}

	// resume skips everything already in the output
	stderr.Reset()
	code = run([]string{
		"-config", cfgPath,
		"-input", input,
		"-output", output,
		"-resume",
		"-append",
	}, &stderr)
	if code != 0 {
		t.Fatalf("resume exit code = %d\n%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "success=0 failure=1 skipped=2 total=3") {
		t.Errorf("resume summary missing:\n%s", stderr.String())
	}
}

func TestResumeKeepsExistingOutput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, page, "会社"+filepath.Base(r.URL.Path))
	}))
	defer ts.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "codelist.csv")
	output := filepath.Join(dir, "result.csv")
	cfgPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(cfgPath, []byte(fmt.Sprintf("scrape:\n  renderer: http\n  url_template: %s/stocks/%%s\n  sleep: 0s\n", ts.URL)), 0o644)
	args := []string{"-config", cfgPath, "-input", input, "-output", output, "-fields", "company_name"}

	os.WriteFile(input, []byte("code\n1001\n1002\n"), 0o644)
	var stderr bytes.Buffer
	if code := run(args, &stderr); code != 0 {
		t.Fatalf("exit code = %d\n%s", code, stderr.String())
	}

	// resume without -append must not truncate the earlier rows
	os.WriteFile(input, []byte("code\n1001\n1002\n1003\n"), 0o644)
	stderr.Reset()
	if code := run(append(args, "-resume"), &stderr); code != 0 {
		t.Fatalf("resume exit code = %d\n%s", code, stderr.String())
	}

	data, _ := os.ReadFile(output)
	want := bom + "code,company_name\n" +
		"1001,会社1001\n" +
		"1002,会社1002\n" +
		"1003,会社1003\n"
	if string(data) != want {
		t.Errorf("result =\n%q\nwant\n%q", data, want)
	}
	if !strings.Contains(stderr.String(), "success=1 failure=0 skipped=2 total=3") {
		t.Errorf("resume summary missing:\n%s", stderr.String())
	}
	if !strings.Contains(stderr.String(), "resume implies append") {
		t.Errorf("missing append warning:\n%s", stderr.String())
	}
}

func TestRunMissingInput(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"-input", filepath.Join(t.TempDir(), "none.csv")}, &stderr); code != 1 {
		t.Errorf("exit code = %d", code)
	}
}
