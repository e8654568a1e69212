// Package config loads the scraper configuration from YAML
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"shikihoscraper/browser"
	"shikihoscraper/logger"
	"shikihoscraper/profile"
)

// DefaultURLTemplate is the profile page of a security code
const DefaultURLTemplate = "https://shikiho.toyokeizai.net/stocks/%s"

// Renderer names
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

type Config struct {
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Retry   RetryConfig   `yaml:"retry"`
	Browser BrowserConfig `yaml:"browser"`
	Output  OutputConfig  `yaml:"output"`
	Log     logger.Config `yaml:"log"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
}

type ScrapeConfig struct {
	URLTemplate string        `yaml:"url_template"`
	Renderer    string        `yaml:"renderer"`
	Sleep       time.Duration `yaml:"sleep"`
	// Jitter is the fraction of Sleep added or removed at random, 0.3 => ±30%
	Jitter        float64 `yaml:"jitter"`
	MaxIndustries int     `yaml:"max_industries"` // 0 keeps every industry
	Limit         int     `yaml:"limit"`          // 0 processes every code
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Base     time.Duration `yaml:"base"`
	Factor   float64       `yaml:"factor"`
	Max      time.Duration `yaml:"max"`
}

type BrowserConfig struct {
	Headless   bool          `yaml:"headless"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
	Settle     time.Duration `yaml:"settle"`
	MaxTabs    int           `yaml:"max_tabs"`
}

type OutputConfig struct {
	Path     string   `yaml:"path"`
	Fields   []string `yaml:"fields"`
	Failures string   `yaml:"failures"`
}

// RedisConfig enables the record cache when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig enables the SQLite record store when Path is set
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns the configuration used when no file is given
func Defaults() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			URLTemplate:   DefaultURLTemplate,
			Renderer:      RendererBrowser,
			Sleep:         time.Second,
			MaxIndustries: profile.DefaultMaxIndustries,
		},
		Retry: RetryConfig{
			Base:   time.Second,
			Factor: 1.6,
			Max:    15 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:   true,
			UserAgent:  browser.DefaultUserAgent,
			Timeout:    20 * time.Second,
			NavTimeout: 20 * time.Second,
			Settle:     time.Second,
			MaxTabs:    4,
		},
		Output: OutputConfig{
			Path:   "result.csv",
			Fields: append([]string(nil), profile.Fields...),
		},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			TTL:    12 * time.Hour,
			Prefix: "shikiho:",
		},
		Server: ServerConfig{
			Port: 8000,
		},
	}
}

// Load reads a YAML file over the defaults; keys missing from the file keep their
// default value. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the scraper cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Scrape.Renderer != RendererBrowser && c.Scrape.Renderer != RendererHTTP:
		return fmt.Errorf("unknown renderer %q", c.Scrape.Renderer)
	case c.Scrape.Sleep < 0:
		return fmt.Errorf("sleep must not be negative")
	case c.Scrape.Jitter < 0:
		return fmt.Errorf("jitter must not be negative")
	case c.Retry.Attempts < 0:
		return fmt.Errorf("retry attempts must not be negative")
	case c.Retry.Factor <= 0:
		return fmt.Errorf("retry factor must be positive")
	case c.Browser.MaxTabs <= 0:
		return fmt.Errorf("max_tabs must be positive")
	}
	return nil
}
