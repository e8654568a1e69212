package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"shikihoscraper/dom"
	"shikihoscraper/profile"
)

// annotateScript stamps layout facts on every element so the snapshot can answer
// position and visibility queries without a live page
const annotateScript = `(() => {
  const y = window.scrollY;
  for (const el of document.querySelectorAll('*')) {
    const r = el.getBoundingClientRect();
    const s = getComputedStyle(el);
    const shown = s.display !== 'none' && s.visibility !== 'hidden';
    el.setAttribute('` + dom.TopAttr + `', String(r.top + y));
    el.setAttribute('` + dom.HiddenAttr + `', shown ? '0' : '1');
    el.setAttribute('` + dom.VisibleAttr + `', shown && (r.width > 0 || r.height > 0) ? '1' : '0');
  }
  return true;
})()`

// Options configures a Renderer
type Options struct {
	// URLTemplate is formatted with the security code
	URLTemplate string
	// ActionTimeout bounds clicks and snapshots
	ActionTimeout time.Duration
	// NavTimeout bounds navigation
	NavTimeout time.Duration
	// Settle is how long to wait after load for client-side rendering
	Settle time.Duration
}

// Renderer opens profile pages in pooled tabs
type Renderer struct {
	pool *Pool
	opts Options
}

// NewRenderer creates a renderer over pool
func NewRenderer(pool *Pool, opts Options) *Renderer {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 20 * time.Second
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 20 * time.Second
	}
	return &Renderer{pool: pool, opts: opts}
}

// Render navigates to the profile of code and returns the live page. The page holds a
// tab until it is closed. A 404 or 410 answer gives a profile.NotFoundError.
func (r *Renderer) Render(ctx context.Context, code string) (dom.Page, error) {
	tab, release, err := r.pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get browser tab: %w", err)
	}

	url := fmt.Sprintf(r.opts.URLTemplate, code)
	navCtx, cancel := withCaller(ctx, tab, r.opts.NavTimeout)
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err == nil && r.opts.Settle > 0 {
		err = chromedp.Run(navCtx, chromedp.Sleep(r.opts.Settle))
	}
	cancel()
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if resp != nil {
		if err := profile.CheckStatus(code, int(resp.Status)); err != nil {
			release()
			return nil, err
		}
	}

	live := &livePage{caller: ctx, tab: tab, timeout: r.opts.ActionTimeout}
	snap, err := live.Snapshot()
	if err != nil {
		release()
		return nil, err
	}
	doc, err := dom.FromSnapshot(snap, live)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{HTMLDocument: doc, release: release}, nil
}

// Page is a rendered profile page backed by a pooled tab
type Page struct {
	*dom.HTMLDocument
	release func()
}

// Close returns the tab to the pool
func (p *Page) Close() error {
	p.release()
	return nil
}

// livePage forwards clicks to the tab and re-captures it afterwards
type livePage struct {
	caller  context.Context
	tab     context.Context
	timeout time.Duration
}

func (l *livePage) Click(selector string) error {
	ctx, cancel := withCaller(l.caller, l.tab, l.timeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Sleep(300*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (l *livePage) Snapshot() (dom.Snapshot, error) {
	ctx, cancel := withCaller(l.caller, l.tab, l.timeout)
	defer cancel()

	var snap dom.Snapshot
	var ok bool
	err := chromedp.Run(ctx,
		chromedp.Evaluate(annotateScript, &ok),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &snap.Text),
	)
	if err != nil {
		return dom.Snapshot{}, fmt.Errorf("failed to capture page: %w", err)
	}
	return snap, nil
}

// withCaller derives a timeout context from the tab that is also cancelled with the caller's context
func withCaller(caller, tab context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(tab, timeout)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
