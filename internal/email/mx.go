package email

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// MXCache answers HasMX once per domain and remembers the answer for the
// life of the cache. Concurrent lookups of the same domain share one query.
type MXCache struct {
	resolver MXResolver
	timeout  time.Duration

	mu      sync.RWMutex
	answers map[string]bool
	group   singleflight.Group
}

// NewMXCache creates an MXCache. A nil resolver uses net.DefaultResolver.
func NewMXCache(resolver MXResolver, timeout time.Duration) *MXCache {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MXCache{
		resolver: resolver,
		timeout:  timeout,
		answers:  make(map[string]bool),
	}
}

// HasMX reports whether domain publishes at least one mail exchanger.
// NXDOMAIN and empty answers are negative; temporary resolver failures are
// treated as positive so a flaky resolver does not discard real addresses.
func (c *MXCache) HasMX(ctx context.Context, domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))

	if ok, hit := c.lookupCached(domain); hit {
		return ok
	}

	v, _, _ := c.group.Do(domain, func() (any, error) {
		if ok, hit := c.lookupCached(domain); hit {
			return ok, nil
		}
		ok := c.query(ctx, domain)
		if ctx.Err() != nil {
			// The caller gave up; do not remember an answer it never got.
			return ok, nil
		}
		c.mu.Lock()
		c.answers[domain] = ok
		c.mu.Unlock()
		return ok, nil
	})
	return v.(bool)
}

// Len returns the number of cached domains.
func (c *MXCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.answers)
}

func (c *MXCache) lookupCached(domain string) (ok, hit bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ok, hit = c.answers[domain]
	return ok, hit
}

func (c *MXCache) query(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.resolver.LookupMX(ctx, domain)
	if err == nil {
		for _, mx := range records {
			// A null MX (".") declares the domain accepts no mail.
			if mx.Host != "." && mx.Host != "" {
				return true
			}
		}
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		zap.L().Debug("email: mx lookup inconclusive", zap.String("domain", domain), zap.Error(err))
		return true
	}
	return false
}
