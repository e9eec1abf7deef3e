// Package scrape acquires page markup, either as served (static) or after
// script execution (rendered), with per-host politeness.
package scrape

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-finder/internal/model"
)

// ContentFetcher is what the discovery tiers need from content acquisition.
type ContentFetcher interface {
	FetchStatic(ctx context.Context, url string) (*model.Content, error)
	FetchRendered(ctx context.Context, url string) (*model.Content, error)
}

// ErrRenderingDisabled is returned by FetchRendered when no render backend
// is configured.
var ErrRenderingDisabled = eris.New("scrape: rendering disabled")

// FetchError reports that a URL yielded no usable content. It is scoped to
// the one URL; callers move on to the next candidate.
type FetchError struct {
	URL        string
	Mode       model.Mode
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("scrape: %s fetch %s: status %d", e.Mode, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("scrape: %s fetch %s: %v", e.Mode, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
