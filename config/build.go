package config

import (
	"log/slog"

	"shikihoscraper/browser"
	"shikihoscraper/cache"
	"shikihoscraper/fetch"
	"shikihoscraper/profile"
	"shikihoscraper/runner"
)

// Engine builds the field extraction engine
func (c *Config) Engine(log *slog.Logger) *profile.Engine {
	return profile.New(
		profile.WithMaxIndustries(c.Scrape.MaxIndustries),
		profile.WithLogger(log),
	)
}

// Renderer builds the renderer selected by Scrape.Renderer. stop releases the
// browser, if one was started.
func (c *Config) Renderer(log *slog.Logger) (r runner.Renderer, stop func()) {
	if c.Scrape.Renderer == RendererHTTP {
		return fetch.New(fetch.Options{
			URLTemplate: c.Scrape.URLTemplate,
			UserAgent:   c.Browser.UserAgent,
			Timeout:     c.Browser.NavTimeout,
		}), func() {}
	}

	pool := browser.NewPool(browser.PoolOptions{
		Headless:  c.Browser.Headless,
		UserAgent: c.Browser.UserAgent,
		MaxTabs:   c.Browser.MaxTabs,
		Logger:    log,
	})
	return browser.NewRenderer(pool, browser.Options{
		URLTemplate:   c.Scrape.URLTemplate,
		ActionTimeout: c.Browser.Timeout,
		NavTimeout:    c.Browser.NavTimeout,
		Settle:        c.Browser.Settle,
	}), pool.Shutdown
}

// RetryPolicy converts the retry section for the runner
func (c *Config) RetryPolicy() runner.Retry {
	return runner.Retry{
		Attempts: c.Retry.Attempts,
		Base:     c.Retry.Base,
		Factor:   c.Retry.Factor,
		Max:      c.Retry.Max,
	}
}

// Cache connects the record cache; nil when no Redis address is configured
func (c *Config) Cache() *cache.Cache {
	return cache.New(cache.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TTL:      c.Redis.TTL,
		Prefix:   c.Redis.Prefix,
	})
}

