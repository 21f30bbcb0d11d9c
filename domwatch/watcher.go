// Package domwatch observes DOM subtrees of a live page. It attaches a
// MutationObserver through Chrome DevTools (via Rod) and hands each batch of
// mutation records to a Go handler.
//
// domwatch observes, it does not interpret: emitters decide what a batch
// means.
package domwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/dmitli/domwatch/internal/browser"
	"github.com/hazyhaar/dmitli/domwatch/internal/observer"
	"github.com/hazyhaar/dmitli/domwatch/mutation"
)

// Options selects the mutation types a Watcher reports (child list, subtree
// scope, attributes, character data).
type Options = observer.Options

// Handler receives mutation batches in the order they occurred.
type Handler = observer.Handler

// ErrNotFound is returned when a selector matches no element.
var ErrNotFound = observer.ErrRootNotFound

// Watcher watches one DOM subtree at a time.
type Watcher interface {
	// Observe starts watching the element matching selector. Calling it
	// again replaces the previous scope.
	Observe(ctx context.Context, selector string, opts Options) error
	// Disconnect stops watching. No-op when already stopped.
	Disconnect() error
}

// Source hands out independent Watchers bound to one page.
type Source interface {
	NewWatcher(h Handler) Watcher
}

// Browser owns the Chrome process.
type Browser struct {
	mgr    *browser.Manager
	logger *slog.Logger
}

// NewBrowser creates a Browser from configuration. Call Start before Open.
func NewBrowser(cfg BrowserConfig, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	bc := cfg.toInternal()
	bc.Logger = logger
	return &Browser{mgr: browser.NewManager(bc), logger: logger}
}

// Start launches or connects to Chrome.
func (b *Browser) Start(ctx context.Context) error {
	if _, err := b.mgr.Start(ctx); err != nil {
		return fmt.Errorf("domwatch: start browser: %w", err)
	}
	return nil
}

// Open navigates a new tab to pageURL.
func (b *Browser) Open(ctx context.Context, pageURL string) (*Page, error) {
	tab, err := browser.OpenTab(ctx, b.mgr, pageURL)
	if err != nil {
		return nil, fmt.Errorf("domwatch: open tab: %w", err)
	}
	b.logger.Info("domwatch: page opened", "url", pageURL)
	return &Page{tab: tab, logger: b.logger}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	return b.mgr.Close()
}

// Page is an open tab. It is a Source and also answers the small set of
// evaluations emitters need from the host page.
type Page struct {
	tab    *browser.Tab
	logger *slog.Logger
}

// NewWatcher returns a fresh, idle Watcher on this page.
func (p *Page) NewWatcher(h Handler) Watcher {
	return observer.New(observer.Config{Tab: p.tab, Handler: h, Logger: p.logger})
}

// WaitElement blocks until selector matches an element or timeout elapses.
func (p *Page) WaitElement(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.tab.Page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNotFound, selector)
		}
		return fmt.Errorf("domwatch: wait %s: %w", selector, err)
	}
	return nil
}

// EvalBool evaluates a JS expression and coerces the result to bool.
func (p *Page) EvalBool(ctx context.Context, expr string) (bool, error) {
	res, err := p.tab.Page.Context(ctx).Eval("() => !!(" + expr + ")")
	if err != nil {
		return false, fmt.Errorf("domwatch: eval: %w", err)
	}
	return res.Value.Bool(), nil
}

// InnerText returns the rendered text of the element matching selector, or
// "" when nothing matches.
func (p *Page) InnerText(ctx context.Context, selector string) (string, error) {
	res, err := p.tab.Page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		return el ? el.innerText : '';
	}`, selector)
	if err != nil {
		return "", fmt.Errorf("domwatch: inner text: %w", err)
	}
	return res.Value.Str(), nil
}

// URL returns the page URL the tab was opened with.
func (p *Page) URL() string { return p.tab.PageURL }

// Close closes the tab.
func (p *Page) Close() error {
	return p.tab.Close()
}

var _ Source = (*Page)(nil)

// Batch re-exports the mutation batch type for handler signatures.
type Batch = mutation.Batch
