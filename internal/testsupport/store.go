package testsupport

import (
	"context"
	"testing"

	"assetreg/internal/catalog"
	"assetreg/internal/config"
	"assetreg/internal/registry"
)

// MustOpenStore opens a registry.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...registry.Option) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpsert stores content at logicalPath and returns the committed entry.
// An empty category is inferred from the extension.
func MustUpsert(t testing.TB, store *registry.Store, category catalog.Category, logicalPath string, content []byte) catalog.Entry {
	t.Helper()

	res, err := store.Upsert(context.Background(), registry.Record{
		LogicalPath: logicalPath,
		Content:     content,
		Category:    category,
	})
	if err != nil {
		t.Fatalf("store.Upsert(%s): %v", logicalPath, err)
	}
	return res.Entry
}
