package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"shikihoscraper/browser"
	"shikihoscraper/fetch"
	"shikihoscraper/profile"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
scrape:
  renderer: http
  sleep: 2500ms
  jitter: 0.3
  max_industries: 0
retry:
  attempts: 3
  factor: 2
browser:
  headless: false
  nav_timeout: 45s
output:
  fields: [company_name, themes]
  failures: failures.csv
log:
  level: debug
  format: json
redis:
  addr: localhost:6379
server:
  port: 9090
store:
  path: shikiho.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Scrape.Renderer != RendererHTTP {
		t.Errorf("Expected renderer http, got %s", cfg.Scrape.Renderer)
	}
	if cfg.Scrape.Sleep != 2500*time.Millisecond {
		t.Errorf("Expected sleep 2.5s, got %v", cfg.Scrape.Sleep)
	}
	if cfg.Scrape.MaxIndustries != 0 {
		t.Errorf("Expected explicit max_industries 0 to survive, got %d", cfg.Scrape.MaxIndustries)
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.Factor != 2 {
		t.Errorf("Unexpected retry config %+v", cfg.Retry)
	}
	if cfg.Retry.Base != time.Second || cfg.Retry.Max != 15*time.Second {
		t.Errorf("Expected retry defaults to be kept, got %+v", cfg.Retry)
	}
	if cfg.Browser.Headless {
		t.Error("Expected headless false")
	}
	if cfg.Browser.NavTimeout != 45*time.Second || cfg.Browser.Timeout != 20*time.Second {
		t.Errorf("Unexpected timeouts %v, %v", cfg.Browser.NavTimeout, cfg.Browser.Timeout)
	}
	if !reflect.DeepEqual(cfg.Output.Fields, []string{"company_name", "themes"}) {
		t.Errorf("Unexpected fields %v", cfg.Output.Fields)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Unexpected log config %+v", cfg.Log)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.TTL != 12*time.Hour {
		t.Errorf("Unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Server.Port != 9090 || cfg.Store.Path != "shikiho.db" {
		t.Errorf("Unexpected server/store config %+v %+v", cfg.Server, cfg.Store)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scrape.URLTemplate != DefaultURLTemplate || cfg.Scrape.Sleep != time.Second {
		t.Errorf("Unexpected scrape defaults %+v", cfg.Scrape)
	}
	if cfg.Scrape.MaxIndustries != profile.DefaultMaxIndustries {
		t.Errorf("Expected max industries %d, got %d", profile.DefaultMaxIndustries, cfg.Scrape.MaxIndustries)
	}
	if cfg.Retry.Attempts != 0 || cfg.Retry.Factor != 1.6 {
		t.Errorf("Unexpected retry defaults %+v", cfg.Retry)
	}
	if !cfg.Browser.Headless || cfg.Server.Port != 8000 {
		t.Error("Expected headless browser and port 8000")
	}
	if !reflect.DeepEqual(cfg.Output.Fields, profile.Fields) {
		t.Errorf("Expected all fields, got %v", cfg.Output.Fields)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "scrape: [unclosed"},
		{"unknown renderer", "scrape:\n  renderer: curl\n"},
		{"negative retries", "retry:\n  attempts: -1\n"},
		{"zero factor", "retry:\n  factor: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestBuilders(t *testing.T) {
	cfg := Defaults()
	cfg.Scrape.Renderer = RendererHTTP
	cfg.Retry.Attempts = 2

	r, stop := cfg.Renderer(nil)
	defer stop()
	if _, ok := r.(*fetch.Renderer); !ok {
		t.Errorf("http renderer = %T", r)
	}

	cfg.Scrape.Renderer = RendererBrowser
	r, stop = cfg.Renderer(nil)
	stop()
	if _, ok := r.(*browser.Renderer); !ok {
		t.Errorf("browser renderer = %T", r)
	}

	if c := cfg.Cache(); c != nil {
		t.Errorf("cache without address = %v", c)
	}
	if p := cfg.RetryPolicy(); p.Attempts != 2 || p.Factor != 1.6 || p.Max != 15*time.Second {
		t.Errorf("retry policy = %+v", p)
	}
	if cfg.Engine(nil) == nil {
		t.Error("nil engine")
	}
}
