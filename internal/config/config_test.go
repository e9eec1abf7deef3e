package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Store.Driver)
	assert.Equal(t, "emails_found.csv", cfg.Store.CSVPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentOrgs)
	assert.Equal(t, "google", cfg.Search.Provider)
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1", cfg.Search.GoogleBaseURL)
	assert.Contains(t, cfg.Search.Blacklist, "idealista.com")
	assert.Equal(t, 1000, cfg.Fetch.PolitenessMs)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, []int{429, 500, 502, 503, 504}, cfg.Fetch.RetryStatuses)
	assert.Equal(t, "rod", cfg.Render.Backend)
	assert.Equal(t, 2000, cfg.Render.SettleMs)
	assert.Equal(t, 2, cfg.Render.MaxConcurrent)
	assert.Equal(t, DefaultContactSuffixes, cfg.Discovery.ContactSuffixes)
	assert.Equal(t, 25, cfg.Discovery.MaxCrawlPages)
	assert.Equal(t, 1, cfg.Discovery.MaxCrawlDepth)
	assert.False(t, cfg.Validation.CheckMX)
	assert.True(t, cfg.Validation.CheckTLD)
	assert.Contains(t, cfg.Validation.MediaExtensions, "png")
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://api.firecrawl.dev/v1", cfg.Firecrawl.BaseURL)
	assert.Empty(t, cfg.Monitor.WebhookURL)
	assert.InDelta(t, 0.2, cfg.Monitor.FailureRateThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Monitor.MinProcessed)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: results.db
log:
  level: debug
  format: console
render:
  backend: "off"
discovery:
  contact_suffixes: [contacto]
  max_crawl_pages: 5
validate:
  check_mx: true
batch:
  max_concurrent_orgs: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "results.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "off", cfg.Render.Backend)
	assert.Equal(t, []string{"contacto"}, cfg.Discovery.ContactSuffixes)
	assert.Equal(t, 5, cfg.Discovery.MaxCrawlPages)
	assert.True(t, cfg.Validation.CheckMX)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentOrgs)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Fetch.PolitenessMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))
	t.Setenv("CONTACT_LOG_LEVEL", "error")
	t.Setenv("CONTACT_FETCH_POLITENESS_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 250, cfg.Fetch.PolitenessMs)
}

func TestLoadCredentialAliases(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("GOOGLE_CX", "g-cx")
	t.Setenv("JINA_API_KEY", "j-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Search.GoogleKey)
	assert.Equal(t, "g-cx", cfg.Search.GoogleCX)
	assert.Equal(t, "j-key", cfg.Jina.Key)
}

func TestLoadPrefixedCredentialWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_API_KEY", "bare")
	t.Setenv("CONTACT_SEARCH_GOOGLE_KEY", "prefixed")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Search.GoogleKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "csv", CSVPath: "out.csv"},
		Search: SearchConfig{Provider: "google", GoogleKey: "k", GoogleCX: "cx"},
		Render: RenderConfig{Backend: "rod"},
		Batch:  BatchConfig{MaxConcurrentOrgs: 2},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"google missing cx", func(c *Config) { c.Search.GoogleCX = "" }, "google_cx"},
		{"jina search without key", func(c *Config) { c.Search.Provider = "jina" }, "jina.key"},
		{"no search provider", func(c *Config) { c.Search.Provider = "none" }, ""},
		{"unknown provider", func(c *Config) { c.Search.Provider = "bing" }, "unknown search provider"},
		{"jina render without key", func(c *Config) { c.Render.Backend = "jina" }, "jina render backend"},
		{"firecrawl render without key", func(c *Config) { c.Render.Backend = "firecrawl" }, "firecrawl.key"},
		{"firecrawl render with key", func(c *Config) {
			c.Render.Backend = "firecrawl"
			c.Firecrawl.Key = "fc-key"
		}, ""},
		{"unknown render", func(c *Config) { c.Render.Backend = "webkit" }, "unknown render backend"},
		{"sqlite without url", func(c *Config) { c.Store.Driver = "sqlite" }, "database_url"},
		{"postgres with url", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DatabaseURL = "postgres://localhost/contacts"
		}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "unknown store driver"},
		{"zero concurrency", func(c *Config) { c.Batch.MaxConcurrentOrgs = 0 }, "max_concurrent_orgs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
