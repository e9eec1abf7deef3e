package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	Search     SearchConfig    `yaml:"search" mapstructure:"search"`
	Jina       JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig `yaml:"firecrawl" mapstructure:"firecrawl"`
	Fetch      FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Render     RenderConfig    `yaml:"render" mapstructure:"render"`
	Discovery  DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Validation ValidateConfig  `yaml:"validate" mapstructure:"validate"`
	Batch      BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig    `yaml:"server" mapstructure:"server"`
	Monitor    MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the result sink.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // csv, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	CSVPath     string `yaml:"csv_path" mapstructure:"csv_path"`
}

// SearchConfig configures the search provider used to resolve websites.
type SearchConfig struct {
	Provider         string   `yaml:"provider" mapstructure:"provider"` // google, jina, none
	GoogleKey        string   `yaml:"google_key" mapstructure:"google_key"`
	GoogleCX         string   `yaml:"google_cx" mapstructure:"google_cx"`
	GoogleBaseURL    string   `yaml:"google_base_url" mapstructure:"google_base_url"`
	Qualifier        string   `yaml:"qualifier" mapstructure:"qualifier"`
	MaxResults       int      `yaml:"max_results" mapstructure:"max_results"`
	Blacklist        []string `yaml:"blacklist" mapstructure:"blacklist"`
	RatePerSec       float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries          int      `yaml:"retries" mapstructure:"retries"`
	FailureThreshold int      `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int      `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// FirecrawlConfig holds Firecrawl API settings for the firecrawl render
// backend.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures static content acquisition.
type FetchConfig struct {
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	AcceptLanguage   string `yaml:"accept_language" mapstructure:"accept_language"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PolitenessMs     int    `yaml:"politeness_ms" mapstructure:"politeness_ms"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RetryStatuses    []int  `yaml:"retry_statuses" mapstructure:"retry_statuses"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// RenderConfig configures rendered content acquisition.
type RenderConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // rod, jina, firecrawl, off
	RemoteURL     string `yaml:"remote_url" mapstructure:"remote_url"`
	BrowserBin    string `yaml:"browser_bin" mapstructure:"browser_bin"`
	SettleMs      int    `yaml:"settle_ms" mapstructure:"settle_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// DiscoveryConfig configures link classification and the tier walk.
type DiscoveryConfig struct {
	ContactKeywords []string `yaml:"contact_keywords" mapstructure:"contact_keywords"`
	WebsiteKeywords []string `yaml:"website_keywords" mapstructure:"website_keywords"`
	SkipExtensions  []string `yaml:"skip_extensions" mapstructure:"skip_extensions"`
	ContactSuffixes []string `yaml:"contact_suffixes" mapstructure:"contact_suffixes"`
	ExcludePaths    []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	MaxCrawlPages   int      `yaml:"max_crawl_pages" mapstructure:"max_crawl_pages"`
	MaxCrawlDepth   int      `yaml:"max_crawl_depth" mapstructure:"max_crawl_depth"`
}

// ValidateConfig configures email validation.
type ValidateConfig struct {
	CheckMX         bool     `yaml:"check_mx" mapstructure:"check_mx"`
	CheckTLD        bool     `yaml:"check_tld" mapstructure:"check_tld"`
	MXTimeoutSecs   int      `yaml:"mx_timeout_secs" mapstructure:"mx_timeout_secs"`
	NoiseTokens     []string `yaml:"noise_tokens" mapstructure:"noise_tokens"`
	MediaExtensions []string `yaml:"media_extensions" mapstructure:"media_extensions"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentOrgs int `yaml:"max_concurrent_orgs" mapstructure:"max_concurrent_orgs"`
	DeadlineMins      int `yaml:"deadline_mins" mapstructure:"deadline_mins"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitorConfig configures batch alerts. Alerts are sent only when
// WebhookURL is set.
type MonitorConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinFoundRate         float64 `yaml:"min_found_rate" mapstructure:"min_found_rate"`
	MinProcessed         int     `yaml:"min_processed" mapstructure:"min_processed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.csv_path", "emails_found.csv")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	// Credentials have no defaults; bind them so env-only values unmarshal.
	// The bare GOOGLE_* and JINA_API_KEY names are what .env files usually carry.
	_ = v.BindEnv("search.google_key", "CONTACT_SEARCH_GOOGLE_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("search.google_cx", "CONTACT_SEARCH_GOOGLE_CX", "GOOGLE_CX")
	_ = v.BindEnv("jina.key", "CONTACT_JINA_KEY", "JINA_API_KEY")
	_ = v.BindEnv("store.database_url", "CONTACT_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("firecrawl.key", "CONTACT_FIRECRAWL_KEY", "FIRECRAWL_API_KEY")
	_ = v.BindEnv("monitor.webhook_url", "CONTACT_MONITOR_WEBHOOK_URL")
	_ = v.BindEnv("render.remote_url", "CONTACT_RENDER_REMOTE_URL")
	_ = v.BindEnv("render.browser_bin", "CONTACT_RENDER_BROWSER_BIN")

	v.SetDefault("search.provider", "google")
	v.SetDefault("search.google_base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("search.qualifier", "real estate")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.blacklist", DefaultBlacklist)
	v.SetDefault("search.rate_per_sec", 1.0)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.retries", 2)
	v.SetDefault("search.failure_threshold", 5)
	v.SetDefault("search.reset_timeout_secs", 60)

	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")

	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")

	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.accept_language", "es-ES,es;q=0.9,en;q=0.8")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.politeness_ms", 1000)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 1000)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("fetch.retry_statuses", []int{429, 500, 502, 503, 504})
	v.SetDefault("fetch.max_body_bytes", 5<<20)

	v.SetDefault("render.backend", "rod")
	v.SetDefault("render.settle_ms", 2000)
	v.SetDefault("render.timeout_secs", 30)
	v.SetDefault("render.max_concurrent", 2)

	v.SetDefault("discovery.contact_keywords", DefaultContactKeywords)
	v.SetDefault("discovery.website_keywords", DefaultWebsiteKeywords)
	v.SetDefault("discovery.skip_extensions", DefaultSkipExtensions)
	v.SetDefault("discovery.contact_suffixes", DefaultContactSuffixes)
	v.SetDefault("discovery.exclude_paths", []string{"/wp-json/*", "/feed/*", "/cdn-cgi/*"})
	v.SetDefault("discovery.max_crawl_pages", 25)
	v.SetDefault("discovery.max_crawl_depth", 1)

	v.SetDefault("validate.check_mx", false)
	v.SetDefault("validate.check_tld", true)
	v.SetDefault("validate.mx_timeout_secs", 5)
	v.SetDefault("validate.noise_tokens", DefaultNoiseTokens)
	v.SetDefault("validate.media_extensions", DefaultMediaExtensions)

	v.SetDefault("batch.max_concurrent_orgs", 4)
	v.SetDefault("batch.deadline_mins", 0)

	v.SetDefault("monitor.failure_rate_threshold", 0.2)
	v.SetDefault("monitor.min_found_rate", 0.1)
	v.SetDefault("monitor.min_processed", 10)
}

// Validate reports configuration errors that make a run impossible.
func (c *Config) Validate() error {
	switch c.Search.Provider {
	case "google":
		if c.Search.GoogleKey == "" || c.Search.GoogleCX == "" {
			return eris.New("config: search.google_key and search.google_cx are required for the google provider")
		}
	case "jina":
		if c.Jina.Key == "" {
			return eris.New("config: jina.key is required for the jina search provider")
		}
	case "none", "":
	default:
		return eris.Errorf("config: unknown search provider %q", c.Search.Provider)
	}

	switch c.Render.Backend {
	case "rod", "off", "":
	case "jina":
		if c.Jina.Key == "" {
			return eris.New("config: jina.key is required for the jina render backend")
		}
	case "firecrawl":
		if c.Firecrawl.Key == "" {
			return eris.New("config: firecrawl.key is required for the firecrawl render backend")
		}
	default:
		return eris.Errorf("config: unknown render backend %q", c.Render.Backend)
	}

	switch c.Store.Driver {
	case "csv":
		if c.Store.CSVPath == "" {
			return eris.New("config: store.csv_path is required for the csv driver")
		}
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for the %s driver", c.Store.Driver)
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Batch.MaxConcurrentOrgs < 1 {
		return eris.New("config: batch.max_concurrent_orgs must be at least 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
