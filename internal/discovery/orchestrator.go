// Package discovery runs the tiered contact-email search for organizations,
// one at a time through the Orchestrator or many at once through a Batch.
package discovery

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/links"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/resolve"
	"github.com/sells-group/contact-finder/internal/scrape"
)

// Options bounds the suffix and crawl tiers.
type Options struct {
	ContactSuffixes []string
	// MaxCrawlPages caps the number of pages fetched by the crawl tier.
	MaxCrawlPages int
	// MaxCrawlDepth is the link depth the crawl follows. 1 visits the
	// homepage's links only.
	MaxCrawlDepth int
}

// Orchestrator runs the discovery tiers for one organization at a time. It
// holds no per-organization state and is safe for concurrent use.
type Orchestrator struct {
	resolver   *resolve.Resolver
	fetcher    scrape.ContentFetcher
	classifier *links.Classifier
	validator  *email.Validator
	opts       Options
}

// New creates an Orchestrator.
func New(resolver *resolve.Resolver, fetcher scrape.ContentFetcher, classifier *links.Classifier, validator *email.Validator, opts Options) *Orchestrator {
	if opts.MaxCrawlDepth <= 0 {
		opts.MaxCrawlDepth = 1
	}
	if opts.MaxCrawlPages < 0 {
		opts.MaxCrawlPages = 0
	}
	return &Orchestrator{
		resolver:   resolver,
		fetcher:    fetcher,
		classifier: classifier,
		validator:  validator,
		opts:       opts,
	}
}

// tier is one step of the discovery state machine. It returns the
// validated emails it found, or none.
type tier struct {
	method model.Method
	run    func(r *run) []string
}

var tiers = []tier{
	{model.MethodHomepage, (*run).homepage},
	{model.MethodContactLink, (*run).contactLinks},
	{model.MethodRendered, (*run).renderedHomepage},
	{model.MethodRenderedContactLink, (*run).renderedContactLinks},
	{model.MethodStaticSuffix, (*run).suffixes},
	{model.MethodCrawl, (*run).crawl},
}

// Run resolves org's website and walks the tiers in order, stopping at the
// first that yields validated emails. Per-URL fetch failures only mean "no
// content"; cancellation stops the run with Err set and method none.
func (o *Orchestrator) Run(ctx context.Context, org model.Organization) model.Result {
	start := time.Now()
	r := &run{
		o:        o,
		ctx:      ctx,
		log:      zap.L().With(zap.String("org", org.Name)),
		static:   make(map[string]*model.Content),
		rendered: make(map[string]*model.Content),
	}

	site, err := o.resolver.ResolveWith(ctx, org, r)
	if err != nil {
		res := model.NewResult(org, "", nil, model.MethodNone)
		res.Fetches = r.fetches
		if !errors.Is(err, resolve.ErrNotFound) {
			res.Err = err
		}
		r.log.Info("discovery: no website", zap.Error(err))
		return res
	}
	r.site = site.URL
	r.log = r.log.With(zap.String("website", site.URL), zap.String("provenance", string(site.Provenance)))

	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			return r.cancelled(org, err)
		}
		emails := t.run(r)
		if len(emails) == 0 {
			continue
		}
		res := model.NewResult(org, site.URL, emails, t.method)
		res.Fetches = r.fetches
		r.log.Info("discovery: emails found",
			zap.String("method", string(t.method)),
			zap.Strings("emails", res.Emails),
			zap.Int("fetches", r.fetches),
			zap.Duration("elapsed", time.Since(start)),
		)
		return res
	}

	if err := ctx.Err(); err != nil {
		return r.cancelled(org, err)
	}
	res := model.NewResult(org, site.URL, nil, model.MethodNone)
	res.Fetches = r.fetches
	r.log.Info("discovery: no emails",
		zap.Int("fetches", r.fetches),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}

// run is the state of one organization's discovery. Fetched pages are
// cached per mode by normalized URL, so no page is fetched twice in the
// same mode.
type run struct {
	o   *Orchestrator
	ctx context.Context
	log *zap.Logger

	site     string
	fetches  int
	static   map[string]*model.Content
	rendered map[string]*model.Content
}

func (r *run) cancelled(org model.Organization, err error) model.Result {
	res := model.NewResult(org, r.site, nil, model.MethodNone)
	res.Fetches = r.fetches
	res.Err = eris.Wrap(err, "discovery: cancelled")
	r.log.Info("discovery: cancelled", zap.Int("fetches", r.fetches))
	return res
}

// FetchStatic lets the resolver's profile fetch go through the run's cache
// and fetch counter.
func (r *run) FetchStatic(ctx context.Context, rawURL string) (*model.Content, error) {
	c := r.fetch(rawURL, model.ModeStatic)
	if c == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, eris.Errorf("discovery: no content from %s", rawURL)
	}
	return c, nil
}

// fetch returns the page content or nil. A URL already attempted in mode
// is answered from the cache, failures included.
func (r *run) fetch(rawURL string, mode model.Mode) *model.Content {
	key, err := model.NormalizeURL(rawURL)
	if err != nil {
		r.log.Debug("discovery: skip malformed url", zap.String("url", rawURL), zap.Error(err))
		return nil
	}
	cache := r.static
	if mode == model.ModeRendered {
		cache = r.rendered
	}
	if c, ok := cache[key]; ok {
		return c
	}
	if r.ctx.Err() != nil {
		return nil
	}

	r.fetches++
	var c *model.Content
	if mode == model.ModeRendered {
		c, err = r.o.fetcher.FetchRendered(r.ctx, rawURL)
	} else {
		c, err = r.o.fetcher.FetchStatic(r.ctx, rawURL)
	}
	if err != nil {
		r.log.Debug("discovery: fetch failed",
			zap.String("url", rawURL),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		c = nil
	}
	cache[key] = c
	return c
}

// cached returns the content already fetched for rawURL in mode, which is
// nil when that fetch failed. ok is false when rawURL was never attempted.
func (r *run) cached(rawURL string, mode model.Mode) (c *model.Content, ok bool) {
	key, err := model.NormalizeURL(rawURL)
	if err != nil {
		return nil, true
	}
	cache := r.static
	if mode == model.ModeRendered {
		cache = r.rendered
	}
	c, ok = cache[key]
	return c, ok
}

func (r *run) emails(c *model.Content) []string {
	if c == nil {
		return nil
	}
	return r.o.validator.Filter(r.ctx, email.Extract(c.Markup))
}

func (r *run) classify(c *model.Content) links.Classification {
	if c == nil {
		return links.Classification{}
	}
	res, err := r.o.classifier.ClassifyMarkup(c.Markup, c.BaseURL())
	if err != nil {
		r.log.Debug("discovery: classify failed", zap.String("url", c.URL), zap.Error(err))
	}
	return res
}

// firstWithEmails fetches urls in order and returns the emails of the first
// page that has any.
func (r *run) firstWithEmails(urls []string, mode model.Mode) []string {
	for _, u := range urls {
		if r.ctx.Err() != nil {
			return nil
		}
		if found := r.emails(r.fetch(u, mode)); len(found) > 0 {
			return found
		}
	}
	return nil
}

func (r *run) homepage() []string {
	return r.emails(r.fetch(r.site, model.ModeStatic))
}

func (r *run) contactLinks() []string {
	home := r.fetch(r.site, model.ModeStatic)
	return r.firstWithEmails(r.classify(home).ContactLike, model.ModeStatic)
}

func (r *run) renderedHomepage() []string {
	return r.emails(r.fetch(r.site, model.ModeRendered))
}

func (r *run) renderedContactLinks() []string {
	home := r.fetch(r.site, model.ModeRendered)
	return r.firstWithEmails(r.classify(home).ContactLike, model.ModeRendered)
}

func (r *run) suffixes() []string {
	root, err := siteRoot(r.site)
	if err != nil {
		return nil
	}
	urls := make([]string, 0, len(r.o.opts.ContactSuffixes))
	for _, s := range r.o.opts.ContactSuffixes {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s == "" {
			continue
		}
		urls = append(urls, root+"/"+s)
	}
	return r.firstWithEmails(urls, model.ModeStatic)
}

// crawl renders internal pages of the best homepage content, contact-like
// links first, until one yields emails or the page budget runs out.
func (r *run) crawl() []string {
	home := r.fetch(r.site, model.ModeRendered)
	if home == nil {
		home = r.fetch(r.site, model.ModeStatic)
	}
	if home == nil || r.o.opts.MaxCrawlPages == 0 {
		return nil
	}

	f := newFrontier()
	f.markSeen(r.site)
	f.markSeen(home.BaseURL())
	r.enqueue(f, home, 1)

	visited := 0
	for visited < r.o.opts.MaxCrawlPages {
		if r.ctx.Err() != nil {
			return nil
		}
		item, ok := f.pop()
		if !ok {
			break
		}
		if page, ok := r.cached(item.url, model.ModeRendered); ok {
			if page != nil && item.depth < r.o.opts.MaxCrawlDepth {
				r.enqueue(f, page, item.depth+1)
			}
			continue
		}
		visited++
		page := r.fetch(item.url, model.ModeRendered)
		if found := r.emails(page); len(found) > 0 {
			r.log.Debug("discovery: crawl hit", zap.String("url", item.url), zap.Int("depth", item.depth))
			return found
		}
		if page != nil && item.depth < r.o.opts.MaxCrawlDepth {
			r.enqueue(f, page, item.depth+1)
		}
	}
	r.log.Debug("discovery: crawl exhausted", zap.Int("visited", visited), zap.Int("queued", f.len()))
	return nil
}

func (r *run) enqueue(f *frontier, page *model.Content, depth int) {
	cls := r.classify(page)
	for _, u := range cls.ContactLike {
		f.push(u, depth, true)
	}
	for _, u := range cls.Internal {
		f.push(u, depth, false)
	}
}

// siteRoot is scheme://host of raw.
func siteRoot(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: parse site %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("discovery: site %q is not absolute", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
