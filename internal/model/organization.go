package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Organization is a single input record. Immutable once loaded.
type Organization struct {
	Name       string `json:"name" yaml:"name"`
	Website    string `json:"website,omitempty" yaml:"website,omitempty"`
	ProfileURL string `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
}

// Provenance records how a candidate URL was obtained.
type Provenance string

const (
	ProvenanceKnown        Provenance = "known"         // Website field of the input record
	ProvenanceProfile      Provenance = "profile"       // "visit website" link on a profile page
	ProvenanceSearch       Provenance = "search"        // Search provider result
	ProvenanceInternalLink Provenance = "internal-link" // Discovered on the organization's own site
	ProvenanceSuffix       Provenance = "suffix"        // Site root plus a contact suffix
)

// CandidateURL is an absolute URL tagged with where it came from.
type CandidateURL struct {
	URL        string     `json:"url"`
	Provenance Provenance `json:"provenance"`
}

// Key returns the equality key of the candidate. Two candidates are the same
// page when their keys match.
func (c CandidateURL) Key() string {
	k, err := NormalizeURL(c.URL)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(c.URL))
	}
	return k
}

// Equal reports whether two candidates address the same page.
func (c CandidateURL) Equal(o CandidateURL) bool {
	return c.Key() == o.Key()
}

// NormalizeURL reduces an absolute URL to its equality key: scheme, host and
// path lower-cased, default ports dropped, fragment removed, trailing slash
// trimmed (the root path is "/"), query kept.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", eris.Wrapf(err, "model: parse url %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", eris.Errorf("model: url %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	p := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	if p == "" {
		p = "/"
	}
	out := u.Scheme + "://" + u.Host + p
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}

// SiteHost returns the lower-cased host of raw with any leading "www."
// removed, or "" when raw does not parse.
func SiteHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
