package testsupport

import (
	"path/filepath"
	"testing"

	"bundleid/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are cleared and pacing disabled so runs never touch the network
// unless a test points a strategy at an httptest server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RecordsDir = filepath.Join(base, "records")
	cfgVal.Paths.CachePath = filepath.Join(base, "cache", "verification_cache.json")
	cfgVal.Paths.OverridesPath = filepath.Join(base, "overrides.json")
	cfgVal.Paths.ReportPath = filepath.Join(base, "reports", "unresolved.json")
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "history", "history.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Run.InterRecordDelayMS = 0
	cfgVal.GitHub.Token = ""
	cfgVal.LLM.APIKey = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStrategies overrides the ordered strategy list.
func WithStrategies(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolution.Strategies = append([]string(nil), names...)
	}
}

// WithCatalogURL points the catalog lookup at a test server.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.BaseURL = url
	}
}

// WithMaxProcessed sets the processing cutoff.
func WithMaxProcessed(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.MaxProcessed = &limit
	}
}

// WithForceRecheck enables forced re-resolution.
func WithForceRecheck() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.ForceRecheck = true
	}
}
