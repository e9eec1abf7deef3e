package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/pkg/firecrawl"
)

// FirecrawlRenderer renders pages through the Firecrawl scrape API and
// returns the raw rendered HTML.
type FirecrawlRenderer struct {
	client  firecrawl.Client
	settle  time.Duration
	timeout time.Duration
}

// NewFirecrawlRenderer creates a FirecrawlRenderer. settle is passed as
// Firecrawl's waitFor.
func NewFirecrawlRenderer(client firecrawl.Client, settle, timeout time.Duration) *FirecrawlRenderer {
	return &FirecrawlRenderer{client: client, settle: settle, timeout: timeout}
}

// Render implements Renderer.
func (r *FirecrawlRenderer) Render(ctx context.Context, url string) (string, error) {
	resp, err := r.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{firecrawl.FormatRawHTML},
		WaitFor: int(r.settle / time.Millisecond),
		Timeout: int(r.timeout / time.Millisecond),
	})
	if err != nil {
		return "", eris.Wrapf(err, "scrape: firecrawl render %s", url)
	}
	return resp.Data.Markup(), nil
}

// Close implements Renderer.
func (r *FirecrawlRenderer) Close() error { return nil }
