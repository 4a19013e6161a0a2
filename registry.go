package assetreg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"assetreg/internal/catalog"
	"assetreg/internal/cluster"
	"assetreg/internal/config"
	"assetreg/internal/ingest"
	"assetreg/internal/logging"
	"assetreg/internal/phash"
	"assetreg/internal/registry"
)

type (
	Config   = config.Config
	File     = ingest.File
	Summary  = ingest.Summary
	Outcome  = ingest.Outcome
	Entry    = catalog.Entry
	Category = catalog.Category
	Child    = registry.Child
	Parent   = registry.Parent
	EdgeKind = registry.EdgeKind
	Cluster  = cluster.Cluster
	Kind     = phash.Kind
	Match    = registry.Match
	Stats    = registry.Stats
)

const (
	EdgeNone        = registry.EdgeNone
	EdgeContainment = registry.EdgeContainment
	EdgeComposition = registry.EdgeComposition
)

var (
	ErrNotFound               = registry.ErrNotFound
	ErrDanglingReference      = registry.ErrDanglingReference
	ErrMultipleOwners         = registry.ErrMultipleOwners
	ErrCycle                  = registry.ErrCycle
	ErrIdentityCollision      = registry.ErrIdentityCollision
	ErrPathConflict           = registry.ErrPathConflict
	ErrInvalidEntry           = registry.ErrInvalidEntry
	ErrUnsupportedImageFormat = phash.ErrUnsupportedImageFormat
)

// Registry bundles the catalog store with an ingester and the configured
// clustering defaults.
type Registry struct {
	cfg      *config.Config
	store    *registry.Store
	ingester *ingest.Ingester
	logger   *slog.Logger
}

// Open validates cfg and opens the catalog database. A nil logger discards
// output.
func Open(cfg *Config, logger *slog.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := registry.Open(cfg, registry.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Registry{
		cfg:      cfg,
		store:    store,
		ingester: ingest.New(store, cfg, logger),
		logger:   logger,
	}, nil
}

// OpenPath loads configuration from path (or the default locations when
// empty), builds the configured logger and opens the registry.
func OpenPath(path string) (*Registry, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return Open(cfg, logger)
}

// Close releases the database.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}

// Store exposes the underlying catalog store for lookups and graph queries.
func (r *Registry) Store() *registry.Store {
	return r.store
}

// Ingest runs one ingestion pass.
func (r *Registry) Ingest(ctx context.Context, files []File) (Summary, error) {
	return r.ingester.Run(ctx, files)
}

// Lookup returns the entry with the given identity.
func (r *Registry) Lookup(ctx context.Context, id string) (*Entry, error) {
	return r.store.LookupByIdentity(ctx, id)
}

// ChildrenOf lists the entries owned by a container.
func (r *Registry) ChildrenOf(ctx context.Context, container string) ([]Child, error) {
	return r.store.ChildrenOf(ctx, container)
}

// ParentOf lists the owners of an entry.
func (r *Registry) ParentOf(ctx context.Context, id string) ([]Parent, error) {
	return r.store.ParentOf(ctx, id)
}

// Remove deletes an entry and every edge touching it.
func (r *Registry) Remove(ctx context.Context, id string) (int64, error) {
	return r.store.Remove(ctx, id)
}

// ClusterOptions returns the configured clustering defaults.
func (r *Registry) ClusterOptions() cluster.Options {
	return cluster.Options{
		Kind:        phash.Kind(r.cfg.Clustering.Kind),
		MaxDistance: r.cfg.Clustering.MaxDistance,
	}
}

// Clusters groups every fingerprinted image. A nil opts uses the configured
// defaults.
func (r *Registry) Clusters(ctx context.Context, opts *cluster.Options) ([]Cluster, error) {
	o := r.ClusterOptions()
	if opts != nil {
		o = *opts
	}
	return r.store.Cluster(ctx, o)
}

// Duplicates returns only clusters with more than one member.
func (r *Registry) Duplicates(ctx context.Context, opts *cluster.Options) ([]Cluster, error) {
	clusters, err := r.Clusters(ctx, opts)
	if err != nil {
		return nil, err
	}
	return cluster.Duplicates(clusters), nil
}

// SimilarTo returns images near id on the configured fingerprint kind.
func (r *Registry) SimilarTo(ctx context.Context, id string, maxDistance int) ([]Match, error) {
	return r.store.SimilarTo(ctx, id, phash.Kind(r.cfg.Clustering.Kind), maxDistance)
}

// Stats summarizes registry contents.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	return r.store.Stats(ctx)
}

// Report renders catalog statistics and the duplicate clusters found with
// the configured defaults.
func (r *Registry) Report(ctx context.Context) (string, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return "", err
	}
	dupes, err := r.Duplicates(ctx, nil)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(registry.RenderStats(stats))
	b.WriteString("\n")
	if len(dupes) == 0 {
		b.WriteString("no duplicate images\n")
		return b.String(), nil
	}
	b.WriteString(cluster.Render(dupes))
	b.WriteString("\n")
	return b.String(), nil
}
