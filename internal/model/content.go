package model

import "time"

// Mode selects how content is acquired.
type Mode string

const (
	ModeStatic   Mode = "static"   // Single HTTP GET, markup as served
	ModeRendered Mode = "rendered" // Scripts executed, DOM serialized after settle
)

// Content is the markup of one fetched page. It is discarded once the
// organization's run moves on.
type Content struct {
	URL        string    `json:"url"`
	FinalURL   string    `json:"final_url,omitempty"`
	Markup     string    `json:"-"`
	Mode       Mode      `json:"mode"`
	StatusCode int       `json:"status_code,omitempty"`
	Blocked    string    `json:"blocked,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// BaseURL is the URL relative links in the markup resolve against.
func (c *Content) BaseURL() string {
	if c.FinalURL != "" {
		return c.FinalURL
	}
	return c.URL
}
