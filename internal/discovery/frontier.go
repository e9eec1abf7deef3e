package discovery

import "github.com/sells-group/contact-finder/internal/model"

// crawlItem is one queued page with the link depth it was found at.
type crawlItem struct {
	url   string
	depth int
}

// frontier is the crawl queue of one organization. Contact-like links are
// served before plain internal links; within each queue, discovery order is
// kept. The seen set only grows, so no normalized URL is queued twice.
type frontier struct {
	contact []crawlItem
	other   []crawlItem
	seen    map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// markSeen records a URL as visited without queuing it.
func (f *frontier) markSeen(rawURL string) {
	if key, err := model.NormalizeURL(rawURL); err == nil {
		f.seen[key] = struct{}{}
	}
}

// push queues rawURL unless it was seen before. It reports whether the URL
// was queued.
func (f *frontier) push(rawURL string, depth int, contactLike bool) bool {
	key, err := model.NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	item := crawlItem{url: rawURL, depth: depth}
	if contactLike {
		f.contact = append(f.contact, item)
	} else {
		f.other = append(f.other, item)
	}
	return true
}

// pop returns the next page to visit.
func (f *frontier) pop() (crawlItem, bool) {
	if len(f.contact) > 0 {
		it := f.contact[0]
		f.contact = f.contact[1:]
		return it, true
	}
	if len(f.other) > 0 {
		it := f.other[0]
		f.other = f.other[1:]
		return it, true
	}
	return crawlItem{}, false
}

func (f *frontier) len() int {
	return len(f.contact) + len(f.other)
}
