// Package email finds and validates contact email addresses in page markup.
package email

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// tokenRe finds address-shaped substrings anywhere in text.
	tokenRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// mailtoRe catches mailto targets in markup goquery cannot see, such as
	// inline script strings.
	mailtoRe = regexp.MustCompile(`(?i)mailto:([^'"\s<>]+)`)

	// escapeRe matches percent escapes left on a token taken from a URL,
	// such as the "%20" of "%20info@x.com".
	escapeRe = regexp.MustCompile(`^(%[0-9A-Fa-f]{2})+`)
)

// Extract returns every address-shaped token in text, lower-cased, unique
// and sorted. The text is scanned raw, as decoded document text, and through
// mailto: link targets, so entity-encoded and link-only addresses are found.
func Extract(text string) []string {
	seen := make(map[string]struct{})
	add := func(candidate string) {
		for _, tok := range tokenRe.FindAllString(candidate, -1) {
			tok = escapeRe.ReplaceAllString(tok, "")
			tok = strings.ToLower(strings.Trim(tok, "."))
			if strings.HasPrefix(tok, "@") {
				continue
			}
			if tok != "" {
				seen[tok] = struct{}{}
			}
		}
	}

	// mailto targets are percent-encoded; they are added decoded below.
	add(mailtoRe.ReplaceAllString(text, "mailto:"))

	for _, m := range mailtoRe.FindAllStringSubmatch(text, -1) {
		for _, addr := range mailtoTargets(m[1]) {
			add(addr)
		}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		add(doc.Text())
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			href = strings.TrimSpace(href)
			if len(href) < 7 || !strings.EqualFold(href[:7], "mailto:") {
				return
			}
			for _, addr := range mailtoTargets(href[7:]) {
				add(addr)
			}
		})
	}

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// mailtoTargets splits the part after "mailto:" into addresses, dropping the
// query string and undoing percent-encoding.
func mailtoTargets(target string) []string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if dec, err := url.PathUnescape(target); err == nil {
		target = dec
	}
	var out []string
	for _, part := range strings.Split(target, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
