// Package browser renders profile pages in headless Chrome through chromedp
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is a desktop Chrome user agent; the site serves a reduced page to unknown agents
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PoolOptions configures the Chrome process and the number of tabs
type PoolOptions struct {
	Headless  bool
	UserAgent string
	// MaxTabs bounds the number of tabs open at once
	MaxTabs int
	Logger  *slog.Logger
}

// Pool manages a bounded set of browser tabs for reuse
type Pool struct {
	opts        PoolOptions
	log         *slog.Logger
	contexts    chan context.Context
	cancelFuncs map[context.Context]context.CancelFunc
	currentSize int
	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	initialized bool
}

// NewPool creates a browser pool. Chrome is started on first use.
func NewPool(opts PoolOptions) *Pool {
	if opts.MaxTabs <= 0 {
		opts.MaxTabs = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		opts:        opts,
		log:         log,
		contexts:    make(chan context.Context, opts.MaxTabs),
		cancelFuncs: make(map[context.Context]context.CancelFunc),
	}
}

func (pool *Pool) initialize() {
	if pool.initialized {
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", pool.opts.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", "ja-JP"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(pool.opts.UserAgent),
	)

	pool.allocCtx, pool.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	pool.initialized = true
	pool.log.Info("browser pool initialized", "max_tabs", pool.opts.MaxTabs, "headless", pool.opts.Headless)
}

// newTab opens a tab; callers hold pool.mu
func (pool *Pool) newTab() (context.Context, error) {
	ctx, cancel := chromedp.NewContext(pool.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		pool.log.Debug(fmt.Sprintf(format, args...))
	}))

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	if err := chromedp.Run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser tab: %w", err)
	}

	pool.cancelFuncs[ctx] = cancel
	pool.currentSize++
	pool.log.Debug("browser tab opened", "tabs", pool.currentSize)
	return ctx, nil
}

// Get returns an idle tab, opening one while below MaxTabs, or waits for one to be
// released. The returned function gives the tab back to the pool.
func (pool *Pool) Get(ctx context.Context) (context.Context, func(), error) {
	pool.mu.Lock()
	pool.initialize()

	select {
	case tab := <-pool.contexts:
		pool.mu.Unlock()
		return tab, pool.releaser(tab), nil
	default:
	}

	if pool.currentSize < pool.opts.MaxTabs {
		tab, err := pool.newTab()
		pool.mu.Unlock()
		if err != nil {
			return nil, nil, err
		}
		return tab, pool.releaser(tab), nil
	}
	pool.mu.Unlock()

	select {
	case tab := <-pool.contexts:
		return tab, pool.releaser(tab), nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("timeout getting browser tab from pool: %w", ctx.Err())
	}
}

func (pool *Pool) releaser(tab context.Context) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Cookies are kept so dismissed consent dialogs stay dismissed
			refreshCtx, cancel := context.WithTimeout(tab, 3*time.Second)
			err := chromedp.Run(refreshCtx, chromedp.Navigate("about:blank"))
			cancel()

			pool.mu.Lock()
			defer pool.mu.Unlock()
			if err != nil || !pool.initialized {
				pool.discard(tab)
				return
			}
			select {
			case pool.contexts <- tab:
			default:
				pool.discard(tab)
			}
		})
	}
}

// discard closes a tab; callers hold pool.mu
func (pool *Pool) discard(tab context.Context) {
	if cancel, exists := pool.cancelFuncs[tab]; exists {
		cancel()
		delete(pool.cancelFuncs, tab)
		pool.currentSize--
	}
}

// Shutdown closes all tabs and the browser
func (pool *Pool) Shutdown() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if !pool.initialized {
		return
	}

	for ctx, cancel := range pool.cancelFuncs {
		cancel()
		delete(pool.cancelFuncs, ctx)
	}

	if pool.allocCancel != nil {
		pool.allocCancel()
	}

	for len(pool.contexts) > 0 {
		<-pool.contexts
	}

	pool.currentSize = 0
	pool.initialized = false
	pool.log.Info("browser pool shut down")
}
