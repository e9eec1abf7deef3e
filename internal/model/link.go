package model

// LinkClass partitions outbound links relative to the page's host.
type LinkClass string

const (
	LinkInternal LinkClass = "internal"
	LinkExternal LinkClass = "external"
)

// SkipReason explains why a link is never queued for content fetch.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipMailto    SkipReason = "mailto"
	SkipScheme    SkipReason = "scheme"
	SkipExtension SkipReason = "extension"
	SkipExcluded  SkipReason = "excluded"
)

// LinkRecord is one anchor found in a page.
type LinkRecord struct {
	Href        string     `json:"href"`
	Text        string     `json:"text,omitempty"`
	URL         string     `json:"url,omitempty"`
	Class       LinkClass  `json:"class,omitempty"`
	Skip        SkipReason `json:"skip,omitempty"`
	ContactLike bool       `json:"contact_like,omitempty"`
}

// Fetchable reports whether the link may be queued for content fetch.
func (l LinkRecord) Fetchable() bool {
	return l.Skip == SkipNone && l.URL != ""
}
