package testsupport

import (
	"path/filepath"
	"testing"

	"romimport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Enrichment is disabled unless WithEnrichment is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DatDir = filepath.Join(base, "dats")
	cfgVal.Paths.RegistryFile = ""
	cfgVal.Enrichment.Enabled = false
	cfgVal.Enrichment.APIKey = ""
	cfgVal.Workflow.QueuePollIntervalMillis = 10
	cfgVal.Workflow.ErrorRetryInterval = 1

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

// WithEnrichment enables the HTTP metadata provider at baseURL.
func WithEnrichment(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrichment.Enabled = true
		b.cfg.Enrichment.BaseURL = baseURL
		b.cfg.Enrichment.Retries = 1
		b.cfg.Enrichment.TimeoutSeconds = 2
	}
}

// WithMoveFiles switches placement from copy to move.
func WithMoveFiles() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.MoveFiles = true
	}
}

// WithMaxArchiveDepth overrides the nested archive limit.
func WithMaxArchiveDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.MaxArchiveDepth = depth
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}

// InputDir returns a directory under the test root for source files. It is
// outside the library and staging trees.
func InputDir(cfg *config.Config) string {
	return filepath.Join(BaseDir(cfg), "input")
}
