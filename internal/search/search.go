// Package search finds candidate websites for an organization by name
// through a web search API.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/pkg/google"
	"github.com/sells-group/contact-finder/pkg/jina"
)

// Hit is one organic search result. Rank starts at 1.
type Hit struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Rank  int    `json:"rank"`
}

// Provider runs a web search and returns hits in rank order.
type Provider interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// GoogleProvider searches with a Programmable Search Engine.
type GoogleProvider struct {
	client google.Client
	num    int
}

// NewGoogleProvider wraps client. num is the number of hits requested.
func NewGoogleProvider(client google.Client, num int) *GoogleProvider {
	return &GoogleProvider{client: client, num: num}
}

// Search implements Provider.
func (p *GoogleProvider) Search(ctx context.Context, query string) ([]Hit, error) {
	resp, err := p.client.Search(ctx, query, p.num)
	if err != nil {
		return nil, eris.Wrap(err, "search: google")
	}
	hits := make([]Hit, 0, len(resp.Items))
	for i, it := range resp.Items {
		if it.Link == "" {
			continue
		}
		hits = append(hits, Hit{URL: it.Link, Title: it.Title, Rank: i + 1})
	}
	return hits, nil
}

// JinaProvider searches with Jina Search.
type JinaProvider struct {
	client jina.Client
	num    int
}

// NewJinaProvider wraps client.
func NewJinaProvider(client jina.Client, num int) *JinaProvider {
	return &JinaProvider{client: client, num: num}
}

// Search implements Provider.
func (p *JinaProvider) Search(ctx context.Context, query string) ([]Hit, error) {
	var opts []jina.SearchOption
	if p.num > 0 {
		opts = append(opts, jina.WithNum(p.num))
	}
	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}
	hits := make([]Hit, 0, len(resp.Data))
	for i, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		hits = append(hits, Hit{URL: r.URL, Title: r.Title, Rank: i + 1})
		if p.num > 0 && len(hits) == p.num {
			break
		}
	}
	return hits, nil
}

// GuardOptions configures a Guarded provider.
type GuardOptions struct {
	// RatePerSec caps outgoing queries. Zero means unlimited.
	RatePerSec float64
	// Timeout bounds one query including retries.
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Circuit resilience.CircuitBreakerConfig
}

// Guarded decorates a Provider with a rate limit, retries and a circuit
// breaker, so a failing search API degrades to "no results" quickly.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	retry   resilience.RetryConfig
}

// NewGuarded wraps inner.
func NewGuarded(inner Provider, opts GuardOptions) *Guarded {
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	retry := opts.Retry
	retry.ShouldRetry = isRetryable
	retry.OnRetry = resilience.RetryLogger("search", "query")

	circuit := opts.Circuit
	if circuit.OnStateChange == nil {
		circuit.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("search: circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return &Guarded{
		inner:   inner,
		limiter: lim,
		breaker: resilience.NewCircuitBreaker(circuit),
		timeout: opts.Timeout,
		retry:   retry,
	}
}

// Search implements Provider.
func (g *Guarded) Search(ctx context.Context, query string) ([]Hit, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]Hit, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]Hit, error) {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "search: rate limit")
			}
			return g.inner.Search(ctx, query)
		})
	})
}

// State exposes the breaker state.
func (g *Guarded) State() resilience.CircuitState {
	return g.breaker.State()
}

func isRetryable(err error) bool {
	var se *google.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	return resilience.IsTransient(err)
}
