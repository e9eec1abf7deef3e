// Package links extracts anchors from page markup and sorts them into
// internal, external and contact-like links.
package links

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// Options configures a Classifier.
type Options struct {
	ContactKeywords []string
	SkipExtensions  []string
	ExcludePaths    []string
}

// Classification is the outcome of Classify. Every slice keeps document
// order and holds normalized URLs without duplicates.
type Classification struct {
	Internal    []string
	ContactLike []string
	External    []string
}

// Classifier sorts the anchors of a page. It holds no per-page state and is
// safe for concurrent use.
type Classifier struct {
	keywords []string
	skipExt  map[string]struct{}
	exclude  *PathMatcher
}

// NewClassifier creates a Classifier from opts.
func NewClassifier(opts Options) *Classifier {
	c := &Classifier{
		keywords: FoldAll(opts.ContactKeywords),
		skipExt:  make(map[string]struct{}, len(opts.SkipExtensions)),
		exclude:  NewPathMatcher(opts.ExcludePaths),
	}
	for _, ext := range opts.SkipExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.skipExt[ext] = struct{}{}
	}
	return c
}

// Parse returns one LinkRecord per anchor in markup, resolved against base
// (or the document's <base href>). Records carry a skip reason but no class.
func (c *Classifier) Parse(markup string, base *url.URL) []model.LinkRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var out []model.LinkRecord
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		rec := model.LinkRecord{Href: href, Text: strings.Join(strings.Fields(s.Text()), " ")}
		if rec.Text == "" {
			rec.Text, _ = s.Attr("title")
		}

		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "mailto:"):
			rec.Skip = model.SkipMailto
			out = append(out, rec)
			return
		case strings.HasPrefix(lower, "javascript:"), strings.HasPrefix(lower, "tel:"),
			strings.HasPrefix(lower, "data:"), strings.HasPrefix(lower, "whatsapp:"):
			rec.Skip = model.SkipScheme
			out = append(out, rec)
			return
		}

		var (
			abs  *url.URL
			perr error
		)
		if base != nil {
			abs, perr = base.Parse(href)
		} else {
			abs, perr = url.Parse(href)
		}
		if perr != nil || (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
			rec.Skip = model.SkipScheme
			out = append(out, rec)
			return
		}
		abs.Fragment = ""
		rec.URL = abs.String()

		if _, skip := c.skipExt[strings.ToLower(path.Ext(abs.Path))]; skip {
			rec.Skip = model.SkipExtension
		} else if c.exclude.IsExcluded(rec.URL) {
			rec.Skip = model.SkipExcluded
		}
		out = append(out, rec)
	})
	return out
}

// Classify labels links relative to base and partitions them. A link is
// internal when it shares base's host (ignoring a leading "www.") and is
// fetchable; contact-like when it is internal and its path or text contains
// a contact keyword. Mailto and skipped links land in no partition.
func (c *Classifier) Classify(links []model.LinkRecord, base *url.URL) ([]model.LinkRecord, Classification) {
	var res Classification
	if base == nil {
		return links, res
	}
	baseHost := strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")

	seen := make(map[string]struct{})
	contact := make(map[string]struct{})
	labelled := make([]model.LinkRecord, len(links))
	for i, l := range links {
		labelled[i] = l
		if l.URL == "" {
			continue
		}
		if model.SiteHost(l.URL) == baseHost {
			labelled[i].Class = model.LinkInternal
		} else {
			labelled[i].Class = model.LinkExternal
		}
		if !l.Fetchable() {
			continue
		}

		key, err := model.NormalizeURL(l.URL)
		if err != nil {
			continue
		}

		if labelled[i].Class == model.LinkExternal {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				res.External = append(res.External, key)
			}
			continue
		}

		u, _ := url.Parse(l.URL)
		if MatchAny(c.keywords, pathText(u), l.Text) {
			labelled[i].ContactLike = true
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			res.Internal = append(res.Internal, key)
		}
		if _, dup := contact[key]; labelled[i].ContactLike && !dup {
			contact[key] = struct{}{}
			res.ContactLike = append(res.ContactLike, key)
		}
	}
	return labelled, res
}

// ClassifyMarkup parses markup and classifies its links against base.
func (c *Classifier) ClassifyMarkup(markup, base string) (Classification, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Classification{}, eris.Wrapf(err, "links: parse base %q", base)
	}
	_, res := c.Classify(c.Parse(markup, u), u)
	return res, nil
}

// pathText is the unescaped path, with separators turned into spaces so
// "/contact-us/" folds to "contact us".
func pathText(u *url.URL) string {
	if u == nil {
		return ""
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		p = u.Path
	}
	return strings.NewReplacer("/", " ", "-", " ", "_", " ").Replace(p) + " " + p
}
