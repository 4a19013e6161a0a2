package testsupport

import (
	"path/filepath"
	"testing"

	"assetreg/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ExtractionRoot = filepath.Join(base, "extracted")
	cfgVal.Registry.BusyTimeoutMS = 2000
	cfgVal.Ingest.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithHashSize overrides the perceptual hash grid edge.
func WithHashSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.HashSize = size
	}
}

// WithMaxImagePixels overrides the decode guard.
func WithMaxImagePixels(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.MaxImagePixels = limit
	}
}

// WithWorkers overrides the ingestion worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.Workers = n
	}
}

// WithLockStripes overrides the writer lock stripe count.
func WithLockStripes(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registry.LockStripes = n
	}
}

// WithClustering overrides the default clustering kind and threshold.
func WithClustering(kind string, maxDistance int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Clustering.Kind = kind
		b.cfg.Clustering.MaxDistance = maxDistance
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
