package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Renderer executes a page's scripts and returns the serialized DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// RodOptions configures a RodRenderer.
type RodOptions struct {
	// RemoteURL is the DevTools WebSocket URL of a running browser. Empty
	// launches a local headless Chrome.
	RemoteURL string
	// BrowserBin overrides the Chrome binary used by the launcher.
	BrowserBin string
	// Settle is the fixed wait after the load event, for late scripts.
	Settle time.Duration
	// Timeout bounds navigation, load and serialization of one page.
	Timeout time.Duration
}

// RodRenderer renders pages in headless Chrome driven over the DevTools
// protocol. The browser starts on first use; each render gets its own tab.
type RodRenderer struct {
	opts RodOptions

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewRodRenderer creates a RodRenderer. No browser is started until the
// first Render call.
func NewRodRenderer(opts RodOptions) *RodRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	return &RodRenderer{opts: opts}
}

// Render loads url in a fresh tab, waits for the load event plus the settle
// delay, and returns document.documentElement.outerHTML.
func (r *RodRenderer) Render(ctx context.Context, url string) (string, error) {
	b, err := r.connect()
	if err != nil {
		return "", err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", eris.Wrap(err, "scrape: rod open tab")
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			zap.L().Debug("scrape: rod close tab", zap.Error(cerr))
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	p := page.Context(pctx)

	if err := p.Navigate(url); err != nil {
		return "", eris.Wrapf(err, "scrape: rod navigate %s", url)
	}
	if err := p.WaitLoad(); err != nil {
		return "", eris.Wrapf(err, "scrape: rod wait load %s", url)
	}

	if r.opts.Settle > 0 {
		timer := time.NewTimer(r.opts.Settle)
		select {
		case <-pctx.Done():
			timer.Stop()
			return "", eris.Wrapf(pctx.Err(), "scrape: rod settle %s", url)
		case <-timer.C:
		}
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: rod serialize %s", url)
	}
	return res.Value.Str(), nil
}

// Close shuts the browser down. A launched Chrome is killed and its user
// data directory removed.
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return eris.Wrap(err, "scrape: rod close browser")
}

func (r *RodRenderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, eris.New("scrape: renderer closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		if r.opts.BrowserBin != "" {
			l = l.Bin(r.opts.BrowserBin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, eris.Wrap(err, "scrape: rod launch")
		}
		wsURL = u
		r.lnch = l
		zap.L().Info("scrape: launched headless chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if r.lnch != nil {
			r.lnch.Cleanup()
			r.lnch = nil
		}
		return nil, eris.Wrap(err, "scrape: rod connect")
	}
	r.browser = b
	return b, nil
}
