// Package aggregate merges the emails found across organizations into one
// deduplicated, sorted list.
package aggregate

import (
	"sort"
	"strings"
	"sync"

	"github.com/sells-group/contact-finder/internal/model"
)

// Canonical is the comparison form of an address: trimmed and lower-cased.
func Canonical(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Set is a concurrency-safe set of canonical email addresses. The zero
// value is ready to use.
type Set struct {
	mu sync.Mutex
	m  map[string]struct{}
}

// Add inserts emails and returns how many were new.
func (s *Set) Add(emails ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	added := 0
	for _, e := range emails {
		c := Canonical(e)
		if c == "" {
			continue
		}
		if _, ok := s.m[c]; !ok {
			s.m[c] = struct{}{}
			added++
		}
	}
	return added
}

// Merge adds every member of o.
func (s *Set) Merge(o *Set) int {
	return s.Add(o.Sorted()...)
}

// Len is the number of distinct addresses.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sorted returns the members in lexical order.
func (s *Set) Sorted() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.m))
	for e := range s.m {
		out = append(out, e)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Aggregate returns the distinct emails of results in lexical order. The
// output does not depend on the order of results.
func Aggregate(results []model.Result) []string {
	var s Set
	for _, r := range results {
		s.Add(r.Emails...)
	}
	return s.Sorted()
}

// Emails is Aggregate over plain address lists.
func Emails(lists ...[]string) []string {
	var s Set
	for _, l := range lists {
		s.Add(l...)
	}
	return s.Sorted()
}
