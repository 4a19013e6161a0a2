package registry

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"assetreg/internal/catalog"
)

// pathLocks serializes writers per (category, logical path). Distinct paths
// may share a stripe; that only costs parallelism.
type pathLocks struct {
	stripes []sync.Mutex
}

func newPathLocks(n int) *pathLocks {
	if n < 1 {
		n = 1
	}
	return &pathLocks{stripes: make([]sync.Mutex, n)}
}

func (l *pathLocks) stripe(category catalog.Category, logicalPath string) *sync.Mutex {
	d := xxhash.New()
	_, _ = d.WriteString(string(category))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(logicalPath)
	return &l.stripes[d.Sum64()%uint64(len(l.stripes))]
}

// lock acquires the stripe for the key and returns its release function.
func (l *pathLocks) lock(category catalog.Category, logicalPath string) func() {
	mu := l.stripe(category, logicalPath)
	mu.Lock()
	return mu.Unlock
}
