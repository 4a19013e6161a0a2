package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"assetreg/internal/phash"
)

// minSegmentBits is the narrowest segment the bucket index will use; below it
// buckets grow so large that comparing every pair is cheaper.
const minSegmentBits = 4

// checkEvery controls how often long loops look at the context.
const checkEvery = 256

// Sample is one image offered to the clusterer.
type Sample struct {
	Identity  string
	Label     string
	SizeBytes int64
	Hashes    phash.Set
}

// Cluster is one connected component. Members are ordered by label, then
// identity.
type Cluster struct {
	Members []Sample
	// MaxEdge is the largest distance among the edges that joined the
	// component. It is zero for singletons and exact-match groups.
	MaxEdge int
}

// Size returns the member count.
func (c Cluster) Size() int {
	return len(c.Members)
}

// Identities returns member identities in member order.
func (c Cluster) Identities() []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Identity
	}
	return out
}

// Options selects the fingerprint and threshold.
type Options struct {
	Kind        phash.Kind
	MaxDistance int
}

// Run clusters samples. Samples without a fingerprint of the requested kind
// are ignored. Every remaining sample appears in exactly one cluster, so the
// result includes singletons; use Duplicates to drop them.
func Run(ctx context.Context, samples []Sample, opts Options) ([]Cluster, error) {
	if opts.MaxDistance < 0 {
		return nil, fmt.Errorf("max distance must not be negative, got %d", opts.MaxDistance)
	}
	kind, err := phash.ParseKind(string(opts.Kind))
	if err != nil {
		return nil, err
	}
	opts.Kind = kind

	usable := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if len(s.Hashes.Get(opts.Kind)) > 0 {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return nil, nil
	}

	uf := newUnionFind(len(usable))
	maxEdge := make(map[int]int)
	link := func(i, j int) {
		d, err := usable[i].Hashes.Get(opts.Kind).Distance(usable[j].Hashes.Get(opts.Kind))
		if err != nil || d > opts.MaxDistance {
			// Different hash widths never match.
			return
		}
		ri, rj := uf.find(i), uf.find(j)
		edge := max(d, maxEdge[ri], maxEdge[rj])
		if ri != rj {
			uf.union(ri, rj)
		}
		maxEdge[uf.find(i)] = edge
	}

	if segments, ok := segmentPlan(usable, opts); ok {
		err = linkBySegments(ctx, usable, opts.Kind, segments, link)
	} else {
		err = linkAllPairs(ctx, len(usable), link)
	}
	if err != nil {
		return nil, err
	}

	groups := make(map[int][]Sample)
	for i, s := range usable {
		root := uf.find(i)
		groups[root] = append(groups[root], s)
	}
	out := make([]Cluster, 0, len(groups))
	for root, members := range groups {
		sort.Slice(members, func(a, b int) bool {
			if members[a].Label != members[b].Label {
				return members[a].Label < members[b].Label
			}
			return members[a].Identity < members[b].Identity
		})
		c := Cluster{Members: members}
		if len(members) > 1 {
			c.MaxEdge = maxEdge[root]
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Size() != out[b].Size() {
			return out[a].Size() > out[b].Size()
		}
		return lessSample(out[a].Members[0], out[b].Members[0])
	})
	return out, nil
}

// Duplicates keeps only clusters with more than one member.
func Duplicates(clusters []Cluster) []Cluster {
	out := make([]Cluster, 0, len(clusters))
	for _, c := range clusters {
		if c.Size() > 1 {
			out = append(out, c)
		}
	}
	return out
}

func lessSample(a, b Sample) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.Identity < b.Identity
}

func linkAllPairs(ctx context.Context, n int, link func(i, j int)) error {
	for i := 0; i < n; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j := i + 1; j < n; j++ {
			link(i, j)
		}
	}
	return nil
}

// segmentPlan decides whether the pigeonhole index applies: with d+1
// segments, any two hashes within distance d agree exactly on one segment.
func segmentPlan(samples []Sample, opts Options) (int, bool) {
	bits := samples[0].Hashes.Get(opts.Kind).Bits()
	for _, s := range samples[1:] {
		if s.Hashes.Get(opts.Kind).Bits() != bits {
			return 0, false
		}
	}
	segments := opts.MaxDistance + 1
	if bits/segments < minSegmentBits {
		return 0, false
	}
	return segments, true
}

type bucketKey struct {
	segment int
	value   string
}

func linkBySegments(ctx context.Context, samples []Sample, kind phash.Kind, segments int, link func(i, j int)) error {
	bits := samples[0].Hashes.Get(kind).Bits()
	buckets := make(map[bucketKey][]int)
	for i, s := range samples {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		h := s.Hashes.Get(kind)
		for seg := 0; seg < segments; seg++ {
			lo, hi := seg*bits/segments, (seg+1)*bits/segments
			key := bucketKey{segment: seg, value: segmentValue(h, lo, hi)}
			buckets[key] = append(buckets[key], i)
		}
	}

	type pair struct{ i, j int }
	seen := make(map[pair]struct{})
	visited := 0
	for _, members := range buckets {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				p := pair{members[a], members[b]}
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				visited++
				if visited%checkEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				link(p.i, p.j)
			}
		}
	}
	return nil
}

func segmentValue(h phash.Hash, lo, hi int) string {
	buf := make([]byte, (hi-lo+7)/8)
	for i := lo; i < hi; i++ {
		if h.Bit(i) {
			off := i - lo
			buf[off/8] |= 0x80 >> (off % 8)
		}
	}
	return string(buf)
}

// ErrUnknownIdentity is returned by Find when the identity is in no cluster.
var ErrUnknownIdentity = errors.New("identity not clustered")

// Find returns the cluster containing identity.
func Find(clusters []Cluster, identity string) (Cluster, error) {
	for _, c := range clusters {
		for _, m := range c.Members {
			if m.Identity == identity {
				return c, nil
			}
		}
	}
	return Cluster{}, ErrUnknownIdentity
}
