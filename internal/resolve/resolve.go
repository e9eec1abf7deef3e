// Package resolve determines the website to search for an organization's
// contact emails.
package resolve

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/links"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/search"
)

// ErrNotFound means no website could be determined for the organization.
var ErrNotFound = eris.New("resolve: no website found")

// StaticFetcher is the subset of scrape.ContentFetcher the resolver uses.
type StaticFetcher interface {
	FetchStatic(ctx context.Context, url string) (*model.Content, error)
}

// Options configures a Resolver.
type Options struct {
	// Qualifier is appended to the organization name in search queries.
	Qualifier string
	// Blacklist holds aggregator and social hosts that are never a website.
	Blacklist []string
	// WebsiteKeywords identify the "visit website" link on a profile page.
	WebsiteKeywords []string
}

// Resolver picks a candidate website in order: the known website, the
// profile page's website link, then the first acceptable search hit.
type Resolver struct {
	provider   search.Provider
	fetcher    StaticFetcher
	classifier *links.Classifier
	blacklist  []string
	keywords   []string
	qualifier  string
}

// New creates a Resolver. provider and fetcher may be nil to disable the
// search and profile steps respectively.
func New(provider search.Provider, fetcher StaticFetcher, classifier *links.Classifier, opts Options) *Resolver {
	return &Resolver{
		provider:   provider,
		fetcher:    fetcher,
		classifier: classifier,
		blacklist:  normalizeBlacklist(opts.Blacklist),
		keywords:   links.FoldAll(opts.WebsiteKeywords),
		qualifier:  strings.TrimSpace(opts.Qualifier),
	}
}

// Resolve returns the organization's candidate website or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, org model.Organization) (model.CandidateURL, error) {
	return r.ResolveWith(ctx, org, r.fetcher)
}

// ResolveWith is Resolve with the profile page fetched through fetcher.
func (r *Resolver) ResolveWith(ctx context.Context, org model.Organization, fetcher StaticFetcher) (model.CandidateURL, error) {
	log := zap.L().With(zap.String("org", org.Name))

	if site := strings.TrimSpace(org.Website); site != "" {
		if !strings.Contains(site, "://") {
			site = "http://" + site
		}
		if _, err := model.NormalizeURL(site); err == nil {
			return model.CandidateURL{URL: site, Provenance: model.ProvenanceKnown}, nil
		}
		log.Warn("resolve: ignoring malformed website", zap.String("website", org.Website))
	}

	if org.ProfileURL != "" && fetcher != nil {
		if c, ok := r.fromProfile(ctx, org.ProfileURL, fetcher); ok {
			log.Debug("resolve: website from profile page", zap.String("url", c.URL))
			return c, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return model.CandidateURL{}, eris.Wrap(err, "resolve: cancelled")
	}

	if r.provider == nil || strings.TrimSpace(org.Name) == "" {
		return model.CandidateURL{}, ErrNotFound
	}

	query := strings.TrimSpace(org.Name + " " + r.qualifier)
	hits, err := r.provider.Search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return model.CandidateURL{}, eris.Wrap(ctx.Err(), "resolve: cancelled")
		}
		log.Warn("resolve: search failed", zap.String("query", query), zap.Error(err))
		return model.CandidateURL{}, ErrNotFound
	}
	for _, h := range hits {
		if !isWebURL(h.URL) || IsBlacklisted(h.URL, r.blacklist) {
			continue
		}
		return model.CandidateURL{URL: h.URL, Provenance: model.ProvenanceSearch}, nil
	}
	log.Debug("resolve: no acceptable search hit", zap.Int("hits", len(hits)))
	return model.CandidateURL{}, ErrNotFound
}

// fromProfile scans the profile page for the first external, non-blacklisted
// link whose text names a website.
func (r *Resolver) fromProfile(ctx context.Context, profileURL string, fetcher StaticFetcher) (model.CandidateURL, bool) {
	content, err := fetcher.FetchStatic(ctx, profileURL)
	if err != nil {
		zap.L().Debug("resolve: profile fetch failed", zap.String("url", profileURL), zap.Error(err))
		return model.CandidateURL{}, false
	}
	base, err := url.Parse(content.BaseURL())
	if err != nil {
		return model.CandidateURL{}, false
	}

	labelled, _ := r.classifier.Classify(r.classifier.Parse(content.Markup, base), base)
	for _, l := range labelled {
		if l.Class != model.LinkExternal || !l.Fetchable() {
			continue
		}
		if IsBlacklisted(l.URL, r.blacklist) {
			continue
		}
		if !links.MatchAny(r.keywords, l.Text) {
			continue
		}
		return model.CandidateURL{URL: l.URL, Provenance: model.ProvenanceProfile}, true
	}
	return model.CandidateURL{}, false
}

// IsBlacklisted reports whether rawURL's host is a blacklist entry or a
// subdomain of one. A leading "www." is ignored on both sides.
func IsBlacklisted(rawURL string, blacklist []string) bool {
	host := model.SiteHost(rawURL)
	if host == "" {
		return false
	}
	for _, entry := range blacklist {
		entry = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(entry)), "www.")
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func normalizeBlacklist(list []string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), "www.")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func isWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
