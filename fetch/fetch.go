// Package fetch renders profile pages with a plain HTTP GET. Pages come back as
// static snapshots: no client-side rendering, no layout and no clicks.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"shikihoscraper/dom"
	"shikihoscraper/profile"
)

// Options configures a Renderer
type Options struct {
	URLTemplate string
	UserAgent   string
	Timeout     time.Duration
	// Client overrides the HTTP client, mainly for tests
	Client *http.Client
}

// Renderer fetches profile pages over HTTP
type Renderer struct {
	client *http.Client
	opts   Options
}

// New creates an HTTP renderer
func New(opts Options) *Renderer {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Renderer{client: client, opts: opts}
}

// Render downloads and parses the profile of code. A 404 or 410 answer gives a
// profile.NotFoundError; other non-2xx answers are plain errors.
func (r *Renderer) Render(ctx context.Context, code string) (dom.Page, error) {
	url := fmt.Sprintf(r.opts.URLTemplate, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if err := profile.CheckStatus(code, resp.StatusCode); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := decode(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := dom.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return staticPage{doc}, nil
}

type staticPage struct {
	*dom.HTMLDocument
}

func (staticPage) Close() error { return nil }

// decode wraps the response body according to its Content-Encoding
func decode(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return reader, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "zstd":
		reader, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return reader.IOReadCloser(), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
