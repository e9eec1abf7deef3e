package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/pkg/jina"
)

// JinaRenderer renders pages through the hosted Jina reader, which runs
// the page in its own browser and returns the resulting DOM.
type JinaRenderer struct {
	client  jina.Client
	timeout time.Duration
}

// NewJinaRenderer creates a JinaRenderer backed by client.
func NewJinaRenderer(client jina.Client, timeout time.Duration) *JinaRenderer {
	return &JinaRenderer{client: client, timeout: timeout}
}

// Render implements Renderer.
func (r *JinaRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := []jina.ReadOption{jina.WithReturnFormat(jina.FormatHTML)}
	if r.timeout > 0 {
		opts = append(opts, jina.WithReadTimeout(r.timeout))
	}
	resp, err := r.client.Read(ctx, url, opts...)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: jina render %s", url)
	}
	return resp.Data.Markup(), nil
}

// Close implements Renderer.
func (r *JinaRenderer) Close() error { return nil }
