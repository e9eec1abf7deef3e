package main

import (
	"context"
	"net"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/internal/discovery"
	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/links"
	"github.com/sells-group/contact-finder/internal/resilience"
	"github.com/sells-group/contact-finder/internal/resolve"
	"github.com/sells-group/contact-finder/internal/scrape"
	"github.com/sells-group/contact-finder/internal/search"
	"github.com/sells-group/contact-finder/internal/store"
	"github.com/sells-group/contact-finder/pkg/firecrawl"
	"github.com/sells-group/contact-finder/pkg/google"
	"github.com/sells-group/contact-finder/pkg/jina"
)

// discoveryEnv holds the collaborators shared by the discover, find and
// serve commands.
type discoveryEnv struct {
	Orchestrator *discovery.Orchestrator
	Acquirer     *scrape.Acquirer
	Sink         store.Sink
}

// Close releases the browser and the sink.
func (e *discoveryEnv) Close() {
	if e.Acquirer != nil {
		if err := e.Acquirer.Close(); err != nil {
			zap.L().Warn("close renderer", zap.Error(err))
		}
	}
	if e.Sink != nil {
		if err := e.Sink.Close(); err != nil {
			zap.L().Warn("close sink", zap.Error(err))
		}
	}
}

// initDiscovery validates the config and builds the orchestrator. The sink
// is opened only when withSink is set. Callers should defer env.Close().
func initDiscovery(ctx context.Context, c *config.Config, withSink bool) (*discoveryEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	jinaClient := newJinaClient(c)
	pacer := scrape.NewHostPacer(time.Duration(c.Fetch.PolitenessMs) * time.Millisecond)
	static := scrape.NewStaticFetcher(scrape.StaticOptions{
		UserAgent:      c.Fetch.UserAgent,
		AcceptLanguage: c.Fetch.AcceptLanguage,
		Timeout:        time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxBodyBytes:   c.Fetch.MaxBodyBytes,
		Retry:          resilience.FromSettings(c.Fetch.MaxAttempts, c.Fetch.InitialBackoffMs, c.Fetch.MaxBackoffMs),
		RetryStatuses:  c.Fetch.RetryStatuses,
	}, pacer, nil)

	acq := scrape.NewAcquirer(static, initRenderer(c, jinaClient), pacer, scrape.AcquirerOptions{
		MaxConcurrentRenders: c.Render.MaxConcurrent,
		RenderTimeout:        time.Duration(c.Render.TimeoutSecs) * time.Second,
	})

	classifier := links.NewClassifier(links.Options{
		ContactKeywords: c.Discovery.ContactKeywords,
		SkipExtensions:  c.Discovery.SkipExtensions,
		ExcludePaths:    c.Discovery.ExcludePaths,
	})

	validator := newValidator(c)

	resolver := resolve.New(initSearch(c, jinaClient), acq, classifier, resolve.Options{
		Qualifier:       c.Search.Qualifier,
		Blacklist:       c.Search.Blacklist,
		WebsiteKeywords: c.Discovery.WebsiteKeywords,
	})

	env := &discoveryEnv{
		Orchestrator: discovery.New(resolver, acq, classifier, validator, discovery.Options{
			ContactSuffixes: c.Discovery.ContactSuffixes,
			MaxCrawlPages:   c.Discovery.MaxCrawlPages,
			MaxCrawlDepth:   c.Discovery.MaxCrawlDepth,
		}),
		Acquirer: acq,
	}

	if withSink {
		sink, err := initSink(ctx, c.Store)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Sink = sink
	}
	return env, nil
}

// newValidator builds the email validator from the validate section.
func newValidator(c *config.Config) *email.Validator {
	var mx email.MXChecker
	if c.Validation.CheckMX {
		mx = email.NewMXCache(net.DefaultResolver, time.Duration(c.Validation.MXTimeoutSecs)*time.Second)
	}
	return email.NewValidator(email.Policy{
		MediaExtensions: c.Validation.MediaExtensions,
		NoiseTokens:     c.Validation.NoiseTokens,
		CheckTLD:        c.Validation.CheckTLD,
		CheckMX:         c.Validation.CheckMX,
	}, mx)
}

func newJinaClient(c *config.Config) jina.Client {
	opts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL), jina.WithRetry(2, time.Second)}
	if c.Jina.SearchBaseURL != "" {
		opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	return jina.NewClient(c.Jina.Key, opts...)
}

// initRenderer returns nil when rendering is off, which makes the rendered
// tiers report "rendering disabled".
func initRenderer(c *config.Config, jinaClient jina.Client) scrape.Renderer {
	timeout := time.Duration(c.Render.TimeoutSecs) * time.Second
	switch c.Render.Backend {
	case "off":
		zap.L().Info("rendering disabled")
		return nil
	case "jina":
		zap.L().Info("rendering via jina reader")
		return scrape.NewJinaRenderer(jinaClient, timeout)
	case "firecrawl":
		zap.L().Info("rendering via firecrawl")
		client := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
		return scrape.NewFirecrawlRenderer(client, time.Duration(c.Render.SettleMs)*time.Millisecond, timeout)
	default:
		return scrape.NewRodRenderer(scrape.RodOptions{
			RemoteURL:  c.Render.RemoteURL,
			BrowserBin: c.Render.BrowserBin,
			Settle:     time.Duration(c.Render.SettleMs) * time.Millisecond,
			Timeout:    timeout,
		})
	}
}

// initSearch returns nil for the "none" provider, which leaves organizations
// without a known website unresolved.
func initSearch(c *config.Config, jinaClient jina.Client) search.Provider {
	var inner search.Provider
	switch c.Search.Provider {
	case "none", "":
		zap.L().Info("website search disabled")
		return nil
	case "jina":
		inner = search.NewJinaProvider(jinaClient, c.Search.MaxResults)
	default:
		var opts []google.Option
		if c.Search.GoogleBaseURL != "" {
			opts = append(opts, google.WithBaseURL(c.Search.GoogleBaseURL))
		}
		inner = search.NewGoogleProvider(google.NewClient(c.Search.GoogleKey, c.Search.GoogleCX, opts...), c.Search.MaxResults)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = c.Search.Retries + 1
	return search.NewGuarded(inner, search.GuardOptions{
		RatePerSec: c.Search.RatePerSec,
		Timeout:    time.Duration(c.Search.TimeoutSecs) * time.Second,
		Retry:      retry,
		Circuit:    resilience.FromCircuitSettings(c.Search.FailureThreshold, c.Search.ResetTimeoutSecs),
	})
}

// initSink opens the configured result sink and applies migrations.
func initSink(ctx context.Context, sc config.StoreConfig) (store.Sink, error) {
	switch sc.Driver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, sc.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres sink")
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, eris.Wrap(err, "migrate postgres sink")
		}
		zap.L().Info("using postgres sink", zap.String("run_id", pg.RunID()))
		return pg, nil
	case "sqlite":
		sq, err := store.NewSQLite(sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite sink")
		}
		if err := sq.Migrate(ctx); err != nil {
			_ = sq.Close()
			return nil, eris.Wrap(err, "migrate sqlite sink")
		}
		zap.L().Info("using sqlite sink", zap.String("path", sc.DatabaseURL), zap.String("run_id", sq.RunID()))
		return sq, nil
	default:
		cs, err := store.NewCSVSink(sc.CSVPath)
		if err != nil {
			return nil, eris.Wrap(err, "init csv sink")
		}
		zap.L().Info("using csv sink", zap.String("path", sc.CSVPath))
		return cs, nil
	}
}
