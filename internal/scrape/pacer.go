package scrape

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// HostPacer serializes requests per remote host and spaces consecutive
// requests to the same host by at least the politeness delay. Requests to
// different hosts proceed independently. One HostPacer is shared by every
// organization in a run.
type HostPacer struct {
	delay time.Duration

	mu    sync.Mutex
	hosts map[string]*hostSlot
}

type hostSlot struct {
	token   chan struct{}
	limiter *rate.Limiter
}

// NewHostPacer creates a HostPacer. A zero delay still serializes requests
// per host.
func NewHostPacer(delay time.Duration) *HostPacer {
	return &HostPacer{delay: delay, hosts: make(map[string]*hostSlot)}
}

// Acquire blocks until the caller may send a request to rawURL's host. The
// returned release func must be called once the response has been read.
func (p *HostPacer) Acquire(ctx context.Context, rawURL string) (release func(), err error) {
	host := hostKey(rawURL)
	slot := p.slot(host)

	select {
	case slot.token <- struct{}{}:
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "scrape: wait for host %s", host)
	}

	if err := slot.limiter.Wait(ctx); err != nil {
		<-slot.token
		return nil, eris.Wrapf(err, "scrape: pace host %s", host)
	}

	var once sync.Once
	return func() { once.Do(func() { <-slot.token }) }, nil
}

// Hosts returns the number of hosts seen so far.
func (p *HostPacer) Hosts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.hosts)
}

func (p *HostPacer) slot(host string) *hostSlot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.hosts[host]
	if !ok {
		lim := rate.NewLimiter(rate.Inf, 1)
		if p.delay > 0 {
			lim = rate.NewLimiter(rate.Every(p.delay), 1)
		}
		s = &hostSlot{token: make(chan struct{}, 1), limiter: lim}
		p.hosts[host] = s
	}
	return s
}

// hostKey is the lower-cased host of rawURL. Unparseable URLs share one slot.
func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}
