package scrape

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/resilience"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultMaxBodyBytes   = 5 << 20
)

// StaticOptions configures a StaticFetcher.
type StaticOptions struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int64
	Retry          resilience.RetryConfig
	RetryStatuses  []int
}

// StaticFetcher performs plain HTTP GETs with a browser-like header set,
// retrying transient failures with exponential backoff.
type StaticFetcher struct {
	client  *http.Client
	opts    StaticOptions
	retryOn resilience.StatusSet
	pacer   *HostPacer
}

// NewStaticFetcher creates a StaticFetcher. pacer may be nil to disable
// politeness; client may be nil to use a client with dial and TLS timeouts.
func NewStaticFetcher(opts StaticOptions, pacer *HostPacer, client *http.Client) *StaticFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = defaultAcceptLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &StaticFetcher{
		client:  client,
		opts:    opts,
		retryOn: resilience.NewStatusSet(opts.RetryStatuses),
		pacer:   pacer,
	}
}

// Fetch GETs rawURL. Statuses in the retry set and connection-level errors
// are retried; any other failure is returned as a *FetchError at once.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) (*model.Content, error) {
	retry := f.opts.Retry
	retry.ShouldRetry = resilience.IsTransient
	retry.OnRetry = resilience.RetryLogger("static", rawURL)

	content, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.Content, error) {
		return f.attempt(ctx, rawURL)
	})
	if err == nil {
		return content, nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return nil, fe
	}
	fe = &FetchError{URL: rawURL, Mode: model.ModeStatic, Err: err}
	var te *resilience.TransientError
	if errors.As(err, &te) {
		fe.StatusCode = te.StatusCode
	}
	return nil, fe
}

func (f *StaticFetcher) attempt(ctx context.Context, rawURL string) (*model.Content, error) {
	if f.pacer != nil {
		release, err := f.pacer.Acquire(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Mode: model.ModeStatic, Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: static request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if f.retryOn.Contains(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, resilience.NewTransientError(eris.Errorf("scrape: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{URL: rawURL, Mode: model.ModeStatic, StatusCode: resp.StatusCode}
	}

	mediaType, params, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && !isMarkup(mediaType) {
		return nil, &FetchError{URL: rawURL, Mode: model.ModeStatic, Err: eris.Errorf("unsupported content type %s", mediaType)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	markup := decodeBody(body, params["charset"])
	block := DetectBlock(resp.StatusCode, resp.Header, body)
	if block != BlockNone {
		zap.L().Debug("scrape: response looks blocked",
			zap.String("url", rawURL),
			zap.String("block", string(block)),
		)
	}

	return &model.Content{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		Markup:     markup,
		Mode:       model.ModeStatic,
		StatusCode: resp.StatusCode,
		Blocked:    string(block),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func isMarkup(mediaType string) bool {
	switch mediaType {
	case "text/html", "application/xhtml+xml", "text/plain", "application/xml", "text/xml":
		return true
	}
	return false
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([A-Za-z0-9_:.-]+)`)

// decodeBody converts body to UTF-8 using the declared charset, falling back
// to a <meta charset> declaration in the first kilobytes of the document.
func decodeBody(body []byte, charset string) string {
	if charset == "" {
		head := body
		if len(head) > 4096 {
			head = head[:4096]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			charset = string(m[1])
		}
	}
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body)
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(body)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(out)
}
