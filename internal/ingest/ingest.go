package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetreg/internal/catalog"
	"assetreg/internal/config"
	"assetreg/internal/identity"
	"assetreg/internal/logging"
	"assetreg/internal/registry"
)

// File is one extracted file and its declared parent.
type File struct {
	// LogicalPath is relative to the extraction root. Absolute paths under the
	// configured root are made relative.
	LogicalPath string
	Content     []byte
	CategoryTag string
	// Category defaults to the category inferred from the extension.
	Category catalog.Category
	// ContainerIdentity names the parent entry directly.
	ContainerIdentity string
	// ContainerPath names the parent by logical path when its identity is not
	// known yet, typically because it is part of the same batch.
	ContainerPath string
	// Link selects the edge kind, case-insensitively; "none" is the same as
	// empty. When empty and a container is given, images
	// use composition and everything else containment.
	Link registry.EdgeKind
}

func (f File) hasContainer() bool {
	return strings.TrimSpace(f.ContainerIdentity) != "" || strings.TrimSpace(f.ContainerPath) != ""
}

// Ingester runs ingestion passes against one registry.
type Ingester struct {
	store   *registry.Store
	logger  *slog.Logger
	workers int
	root    string
	newID   func() string
}

// New builds an ingester using the worker count and extraction root from cfg.
func New(store *registry.Store, cfg *config.Config, logger *slog.Logger) *Ingester {
	workers := 1
	root := ""
	if cfg != nil {
		workers = max(cfg.Ingest.Workers, 1)
		root = strings.TrimSpace(cfg.Paths.ExtractionRoot)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingester{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "ingest"),
		workers: workers,
		root:    root,
		newID:   uuid.NewString,
	}
}

type work struct {
	index    int
	file     File
	phase    int
	depth    int
	path     string
	parent   string
	prepared *registry.Prepared
	err      error
}

// Run ingests files and returns one outcome per file in input order. The
// returned error is non-nil only when ctx is cancelled; files not reached are
// reported as transient failures.
func (in *Ingester) Run(ctx context.Context, files []File) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	batchID := in.newID()
	ctx = logging.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, in.logger)

	summary := Summary{BatchID: batchID, Outcomes: make([]Outcome, len(files))}
	units := make([]*work, len(files))
	for i, f := range files {
		u := &work{index: i, file: f}
		u.file.LogicalPath, u.err = in.relative(f.LogicalPath)
		if u.err == nil && f.ContainerPath != "" {
			u.file.ContainerPath, u.err = in.relative(f.ContainerPath)
		}
		normalized := identity.NormalizePath(u.file.LogicalPath)
		category := f.Category
		if category == "" {
			category = catalog.ForPath(normalized)
		}
		u.phase = category.Rank()
		u.depth = strings.Count(normalized, "/")
		u.path = normalized
		if f.ContainerIdentity == "" {
			u.parent = identity.NormalizePath(u.file.ContainerPath)
		}
		units[i] = u
		summary.Outcomes[i] = Outcome{LogicalPath: normalized, Category: category}
	}

	logger.Info("ingest pass started",
		logging.Int("files", len(files)),
		logging.Int("workers", in.workers),
	)

	var runErr error
	for _, phase := range planPhases(units) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := in.prepare(ctx, phase); err != nil {
			runErr = err
			break
		}
		if err := in.commit(ctx, phase, &summary); err != nil {
			runErr = err
			break
		}
	}

	if runErr != nil {
		for i := range summary.Outcomes {
			if !summary.Outcomes[i].done {
				summary.Outcomes[i].Err = runErr
				summary.Outcomes[i].Severity = registry.SeverityTransient
			}
		}
	}
	summary.tally()
	summary.Duration = time.Since(start)

	logger.Info("ingest pass complete",
		logging.Int("files", len(files)),
		logging.Int("inserted", summary.Inserted),
		logging.Int("updated", summary.Updated),
		logging.Int("unchanged", summary.Unchanged),
		logging.Int("fingerprinted", summary.Fingerprinted),
		logging.Int("degraded", summary.Degraded),
		logging.Int("rejected", summary.Rejected),
		logging.Int("fatal", summary.Fatal),
		logging.Int("transient", summary.Transient),
		logging.Duration("duration", summary.Duration),
	)
	return summary, runErr
}

// planPhases groups work by category rank. Within a phase a unit follows the
// unit its ContainerPath names; shallower paths come first otherwise.
func planPhases(units []*work) [][]*work {
	ordered := make([]*work, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].phase != ordered[j].phase {
			return ordered[i].phase < ordered[j].phase
		}
		return ordered[i].depth < ordered[j].depth
	})
	var phases [][]*work
	for start := 0; start < len(ordered); {
		end := start
		for end < len(ordered) && ordered[end].phase == ordered[start].phase {
			end++
		}
		phases = append(phases, parentsFirst(ordered[start:end]))
		start = end
	}
	return phases
}

// parentsFirst orders a phase depth-first along declared container paths,
// keeping the incoming order among unrelated units. Cycles are broken at the
// first unit revisited; the registry rejects them on commit.
func parentsFirst(phase []*work) []*work {
	byPath := make(map[string]*work, len(phase))
	for _, u := range phase {
		if u.path != "" {
			if _, seen := byPath[u.path]; !seen {
				byPath[u.path] = u
			}
		}
	}
	out := make([]*work, 0, len(phase))
	placed := make(map[*work]bool, len(phase))
	visiting := make(map[*work]bool)
	var visit func(u *work)
	visit = func(u *work) {
		if placed[u] || visiting[u] {
			return
		}
		visiting[u] = true
		if parent, ok := byPath[u.parent]; ok && u.parent != "" && parent != u {
			visit(parent)
		}
		visiting[u] = false
		placed[u] = true
		out = append(out, u)
	}
	for _, u := range phase {
		visit(u)
	}
	return out
}

// prepare computes digests and fingerprints on the worker pool. Per-file
// failures stay on the unit; only cancellation is returned.
func (in *Ingester) prepare(ctx context.Context, phase []*work) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for _, u := range phase {
		if u.err != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u.prepared, u.err = in.store.Prepare(gctx, registry.Record{
				LogicalPath: u.file.LogicalPath,
				Content:     u.file.Content,
				Category:    u.file.Category,
				CategoryTag: u.file.CategoryTag,
			})
			if u.err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (in *Ingester) commit(ctx context.Context, phase []*work, summary *Summary) error {
	for _, u := range phase {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := &summary.Outcomes[u.index]
		fileCtx := logging.WithCategory(logging.WithLogicalPath(ctx, out.LogicalPath), string(out.Category))
		logger := logging.WithContext(fileCtx, in.logger)

		if u.err == nil {
			var link *registry.Link
			link, u.err = in.resolveLink(fileCtx, u.file, u.prepared.Category)
			if u.err == nil {
				var res registry.Result
				res, u.err = in.store.Commit(fileCtx, u.prepared, link)
				if u.err == nil {
					out.apply(res)
				}
			}
		}
		if u.err != nil && errors.Is(u.err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		out.done = true
		if u.err != nil {
			out.Err = u.err
			out.Severity = registry.Classify(u.err)
		}
		in.logOutcome(logger, *out)
	}
	return nil
}

// resolveLink turns a file's declared parent into a registry link.
func (in *Ingester) resolveLink(ctx context.Context, f File, category catalog.Category) (*registry.Link, error) {
	kind, err := registry.ParseEdgeKind(string(f.Link))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrInvalidEntry, err)
	}
	if !f.hasContainer() {
		if kind != registry.EdgeNone {
			return nil, fmt.Errorf("%w: %s link declared without a container", registry.ErrInvalidEntry, kind)
		}
		return nil, nil
	}
	if kind == registry.EdgeNone {
		kind = registry.EdgeContainment
		if category.HoldsImages() {
			kind = registry.EdgeComposition
		}
	}

	container := strings.TrimSpace(f.ContainerIdentity)
	if container == "" {
		parentCategory := catalog.CategoryArchive
		if kind == registry.EdgeComposition {
			parentCategory = catalog.CategoryTextureContainer
		}
		entry, err := in.store.LookupByPath(ctx, parentCategory, f.ContainerPath)
		if errors.Is(err, registry.ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s at %s", registry.ErrDanglingReference, parentCategory, identity.NormalizePath(f.ContainerPath))
		}
		if err != nil {
			return nil, err
		}
		container = entry.Identity
	}
	return &registry.Link{Kind: kind, Container: container, Tag: f.CategoryTag}, nil
}

// relative strips the extraction root from absolute paths.
func (in *Ingester) relative(p string) (string, error) {
	if in.root == "" || !filepath.IsAbs(p) {
		return p, nil
	}
	rel, err := filepath.Rel(in.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the extraction root %s", registry.ErrInvalidEntry, p, in.root)
	}
	return filepath.ToSlash(rel), nil
}

func (in *Ingester) logOutcome(logger *slog.Logger, out Outcome) {
	switch out.Severity {
	case registry.SeverityNone:
		msg := "file ingested"
		if !out.Result.Written() {
			msg = "file already cataloged"
		}
		logger.Debug(msg,
			logging.String(logging.FieldIdentity, out.Identity),
			logging.String("outcome", string(out.Result)),
			logging.Bool("linked", out.Linked),
		)
	case registry.SeverityDegraded:
		logger.Warn("file ingested without fingerprints",
			logging.String(logging.FieldIdentity, out.Identity),
			logging.Error(out.Err),
		)
	case registry.SeverityFatal:
		logger.Error("file rejected",
			logging.Alert("identity_collision"),
			logging.String("severity", string(out.Severity)),
			logging.Error(out.Err),
		)
	default:
		logger.Warn("file rejected",
			logging.String("severity", string(out.Severity)),
			logging.Error(out.Err),
		)
	}
}
