package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Host.URL = "http://127.0.0.1:0"
	cfgVal.Host.APIKey = "host-test"
	cfgVal.LLM.APIKey = "llm-test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.OverrideCacheDir = filepath.Join(base, "override")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Translation.CachePath = filepath.Join(base, "data", "translations.db")
	cfgVal.Logging.Level = "debug"

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

// WithHost points the test config at a fake host server.
func WithHost(url, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Host.URL = url
		b.cfg.Host.APIKey = apiKey
	}
}

// WithCastCap overrides the cast reconciliation cap.
func WithCastCap(max int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cast.MaxMembers = max
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
