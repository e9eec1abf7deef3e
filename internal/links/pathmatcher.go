package links

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher excludes URLs whose path matches a glob pattern. A pattern
// ending in "/*" also matches everything below that directory, so
// "/wp-json/*" excludes "/wp-json/wp/v2/posts".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. Patterns are matched
// case-insensitively; an empty list excludes nothing.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Patterns returns the normalized patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL matches any pattern. Unparseable URLs
// are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	if p == "" {
		p = "/"
	}
	for _, pattern := range m.patterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
		return urlPath == dir || strings.HasPrefix(urlPath, dir+"/")
	}
	return false
}
