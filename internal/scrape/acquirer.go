package scrape

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/contact-finder/internal/model"
)

// Acquirer is the ContentFetcher used by discovery. Static fetches go
// through the StaticFetcher; rendered fetches through the Renderer, bounded
// by a semaphore separate from static traffic. Both share one HostPacer.
type Acquirer struct {
	static   *StaticFetcher
	renderer Renderer
	pacer    *HostPacer
	sem      *semaphore.Weighted
	timeout  time.Duration
}

// AcquirerOptions configures an Acquirer.
type AcquirerOptions struct {
	// MaxConcurrentRenders bounds simultaneous rendered fetches.
	MaxConcurrentRenders int
	// RenderTimeout bounds a single rendered fetch including the wait for a
	// render slot.
	RenderTimeout time.Duration
}

// NewAcquirer builds an Acquirer. renderer may be nil, in which case every
// rendered fetch fails with ErrRenderingDisabled.
func NewAcquirer(static *StaticFetcher, renderer Renderer, pacer *HostPacer, opts AcquirerOptions) *Acquirer {
	if opts.MaxConcurrentRenders <= 0 {
		opts.MaxConcurrentRenders = 1
	}
	return &Acquirer{
		static:   static,
		renderer: renderer,
		pacer:    pacer,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrentRenders)),
		timeout:  opts.RenderTimeout,
	}
}

// Fetch dispatches on mode.
func (a *Acquirer) Fetch(ctx context.Context, url string, mode model.Mode) (*model.Content, error) {
	if mode == model.ModeRendered {
		return a.FetchRendered(ctx, url)
	}
	return a.FetchStatic(ctx, url)
}

// FetchStatic implements ContentFetcher.
func (a *Acquirer) FetchStatic(ctx context.Context, url string) (*model.Content, error) {
	return a.static.Fetch(ctx, url)
}

// FetchRendered implements ContentFetcher.
func (a *Acquirer) FetchRendered(ctx context.Context, url string) (*model.Content, error) {
	if a.renderer == nil {
		return nil, &FetchError{URL: url, Mode: model.ModeRendered, Err: ErrRenderingDisabled}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, &FetchError{URL: url, Mode: model.ModeRendered, Err: eris.Wrap(err, "wait for render slot")}
	}
	defer a.sem.Release(1)

	if a.pacer != nil {
		release, err := a.pacer.Acquire(ctx, url)
		if err != nil {
			return nil, &FetchError{URL: url, Mode: model.ModeRendered, Err: err}
		}
		defer release()
	}

	markup, err := a.renderer.Render(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Mode: model.ModeRendered, Err: err}
	}
	if strings.TrimSpace(markup) == "" {
		return nil, &FetchError{URL: url, Mode: model.ModeRendered, Err: eris.New("empty document")}
	}

	block := DetectBlock(200, nil, []byte(markup))
	if block != BlockNone {
		zap.L().Debug("scrape: rendered page looks blocked",
			zap.String("url", url),
			zap.String("block", string(block)),
		)
	}

	return &model.Content{
		URL:        url,
		FinalURL:   url,
		Markup:     markup,
		Mode:       model.ModeRendered,
		StatusCode: 200,
		Blocked:    string(block),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Close releases the renderer.
func (a *Acquirer) Close() error {
	if a.renderer == nil {
		return nil
	}
	return a.renderer.Close()
}

// IsRenderingDisabled reports whether err came from an Acquirer without a
// render backend.
func IsRenderingDisabled(err error) bool {
	return errors.Is(err, ErrRenderingDisabled)
}
