package email

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// addressRe is the anchored grammar every accepted address satisfies.
var addressRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)

// Policy controls which checks Validate applies.
type Policy struct {
	MediaExtensions []string
	NoiseTokens     []string
	CheckTLD        bool
	CheckMX         bool
}

// MXChecker reports whether a domain accepts mail.
type MXChecker interface {
	HasMX(ctx context.Context, domain string) bool
}

// Validator filters candidate addresses. Safe for concurrent use when its
// MXChecker is.
type Validator struct {
	policy Policy
	mx     MXChecker
	media  []string
	noise  []string
}

// NewValidator creates a Validator. mx may be nil when policy.CheckMX is false.
func NewValidator(policy Policy, mx MXChecker) *Validator {
	v := &Validator{policy: policy, mx: mx}
	for _, ext := range policy.MediaExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			v.media = append(v.media, "."+ext)
		}
	}
	for _, tok := range policy.NoiseTokens {
		if tok = strings.ToLower(strings.TrimSpace(tok)); tok != "" {
			v.noise = append(v.noise, tok)
		}
	}
	return v
}

// Validate reports whether candidate passes every enabled check. Checks run
// in order: grammar, media extension, noise domain, TLD, MX. Rejections are
// silent.
func (v *Validator) Validate(ctx context.Context, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if !addressRe.MatchString(candidate) {
		return false
	}

	lower := strings.ToLower(candidate)
	domain := lower[strings.LastIndexByte(lower, '@')+1:]

	for _, ext := range v.media {
		if strings.HasSuffix(domain, ext) {
			return false
		}
	}

	for _, tok := range v.noise {
		if noiseDomain(domain, tok) {
			return false
		}
	}

	if v.policy.CheckTLD && !knownTLD(domain) {
		return false
	}

	if v.policy.CheckMX {
		if v.mx == nil {
			zap.L().Warn("email: mx check enabled without a checker")
			return false
		}
		if !v.mx.HasMX(ctx, domain) {
			return false
		}
	}
	return true
}

// Filter returns the accepted candidates, lower-cased, unique and sorted.
func (v *Validator) Filter(ctx context.Context, candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if v.Validate(ctx, c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// noiseDomain matches tok against whole labels of domain. A dotted token
// matches the domain itself or any subdomain of it; a bare token matches any
// single label.
func noiseDomain(domain, tok string) bool {
	if strings.Contains(tok, ".") {
		return domain == tok || strings.HasSuffix(domain, "."+tok)
	}
	for _, label := range strings.Split(domain, ".") {
		if label == tok {
			return true
		}
	}
	return false
}

// knownTLD reports whether the right-most label of domain is an ICANN
// top-level domain.
func knownTLD(domain string) bool {
	tld := domain[strings.LastIndexByte(domain, '.')+1:]
	_, icann := publicsuffix.PublicSuffix(tld)
	return icann
}
