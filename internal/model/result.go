package model

import (
	"sort"
	"strings"
)

// Method names the tier that produced an organization's emails.
type Method string

const (
	MethodHomepage            Method = "homepage"
	MethodContactLink         Method = "contact-link"
	MethodRendered            Method = "rendered"
	MethodRenderedContactLink Method = "rendered-contact-link"
	MethodStaticSuffix        Method = "static-suffix"
	MethodCrawl               Method = "crawl"
	MethodNone                Method = "none"
)

// Methods lists every method in tier order, none last.
var Methods = []Method{
	MethodHomepage,
	MethodContactLink,
	MethodRendered,
	MethodRenderedContactLink,
	MethodStaticSuffix,
	MethodCrawl,
	MethodNone,
}

// ParseMethod maps a stored method name back to a Method.
func ParseMethod(s string) (Method, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, m := range Methods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Result is the outcome of one organization's discovery run.
type Result struct {
	Organization Organization `json:"organization" yaml:"organization"`
	Website      string       `json:"website,omitempty" yaml:"website,omitempty"`
	Emails       []string     `json:"emails" yaml:"emails"`
	Method       Method       `json:"method" yaml:"method"`
	Fetches      int          `json:"fetches" yaml:"fetches"`
	Err          error        `json:"-" yaml:"-"`
}

// NewResult builds a Result with lower-cased, unique, sorted emails. Method
// is none exactly when the email list is empty.
func NewResult(org Organization, website string, emails []string, method Method) Result {
	set := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, ok := set[e]; ok {
			continue
		}
		set[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)

	if len(out) == 0 || method == "" || method == MethodNone {
		return Result{Organization: org, Website: website, Emails: []string{}, Method: MethodNone}
	}
	return Result{Organization: org, Website: website, Emails: out, Method: method}
}

// Found reports whether at least one email was discovered.
func (r Result) Found() bool {
	return len(r.Emails) > 0
}
