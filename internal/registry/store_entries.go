package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"assetreg/internal/catalog"
	"assetreg/internal/identity"
	"assetreg/internal/logging"
	"assetreg/internal/phash"
)

// Record is one file handed to the registry by an extraction collaborator.
type Record struct {
	LogicalPath string
	Content     []byte
	// Category defaults to the category inferred from the path extension.
	Category catalog.Category
	// CategoryTag defaults to the category's reporting tag.
	CategoryTag string
}

// Prepared is a record with its digests, and for image categories its
// fingerprints, already computed. Preparing does no writes and may run on any
// goroutine.
type Prepared struct {
	Category     catalog.Category
	CategoryTag  string
	FileName     string
	SizeBytes    int64
	Fingerprints identity.Fingerprints

	content   []byte
	images    *phash.Set
	imageErr  error
	imageDone bool
}

// LogicalPath returns the normalized path.
func (p *Prepared) LogicalPath() string {
	return p.Fingerprints.LogicalPath
}

// Result describes one committed upsert.
type Result struct {
	Entry   catalog.Entry
	Outcome catalog.UpsertResult
	// PreviousIdentity is set when an update replaced the identity.
	PreviousIdentity string
	// Fingerprinted reports that a fingerprint row was written.
	Fingerprinted bool
	// FingerprintErr wraps phash.ErrUnsupportedImageFormat when the image
	// could not be decoded. The entry row is committed regardless.
	FingerprintErr error
	// Linked reports that the declared parent edge was created or retagged.
	Linked bool
}

var errNeedImages = errors.New("fingerprints required")

const commitAttempts = 3

// Prepare validates a record and computes its digests. When the path is
// already cataloged with identical content the fingerprints are skipped,
// since the commit will be a no-op.
func (s *Store) Prepare(ctx context.Context, rec Record) (*Prepared, error) {
	ctx = ensureContext(ctx)
	logicalPath := identity.NormalizePath(rec.LogicalPath)
	if logicalPath == "" {
		return nil, fmt.Errorf("%w: empty logical path", ErrInvalidEntry)
	}
	if identity.EscapesRoot(logicalPath) {
		return nil, fmt.Errorf("%w: %s leaves the extraction root", ErrInvalidEntry, logicalPath)
	}
	category := rec.Category
	if category == "" {
		category = catalog.ForPath(logicalPath)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidEntry, category)
	}

	p := &Prepared{
		Category:     category,
		CategoryTag:  catalog.NormalizeTag(rec.CategoryTag, category),
		FileName:     identity.BaseName(logicalPath),
		SizeBytes:    int64(len(rec.Content)),
		Fingerprints: identity.Assign(rec.Content, logicalPath),
		content:      rec.Content,
	}

	if category.HoldsImages() {
		existing, err := entryByPath(ctx, s.db, category, logicalPath)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", logicalPath, err)
		}
		if existing == nil || existing.ContentFingerprint != p.Fingerprints.Content {
			s.fingerprint(p)
		}
	}
	return p, nil
}

func (s *Store) fingerprint(p *Prepared) {
	if p.imageDone {
		return
	}
	set, err := s.hasher.ComputeBytes(p.content)
	p.imageDone = true
	if err != nil {
		p.imageErr = err
		return
	}
	p.images = &set
}

// Upsert prepares and commits a record without a parent edge.
func (s *Store) Upsert(ctx context.Context, rec Record) (Result, error) {
	p, err := s.Prepare(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	return s.Commit(ctx, p, nil)
}

// UpsertAndLink prepares and commits a record together with its parent edge.
// A rejected edge rolls back the entry as well.
func (s *Store) UpsertAndLink(ctx context.Context, rec Record, link Link) (Result, error) {
	p, err := s.Prepare(ctx, rec)
	if err != nil {
		return Result{}, err
	}
	return s.Commit(ctx, p, &link)
}

// Commit writes a prepared record and, when link is non-nil, its parent edge
// in one transaction.
func (s *Store) Commit(ctx context.Context, p *Prepared, link *Link) (Result, error) {
	ctx = ensureContext(ctx)
	if p == nil {
		return Result{}, fmt.Errorf("%w: nil record", ErrInvalidEntry)
	}
	if link != nil && link.Kind == EdgeNone {
		link = nil
	}

	unlock := s.locks.lock(p.Category, p.LogicalPath())
	defer unlock()

	var (
		res Result
		err error
	)
	for attempt := 0; attempt < commitAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return Result{}, err
		}
		err = s.withTx(ctx, func(tx *sql.Tx) error {
			var txErr error
			res, txErr = s.commitTx(ctx, tx, p, link)
			return txErr
		})
		switch {
		case errors.Is(err, errNeedImages):
			s.fingerprint(p)
			continue
		case isUniqueViolation(err):
			// Another process inserted the same path first; re-read and update.
			continue
		}
		break
	}
	if err != nil {
		return Result{}, fmt.Errorf("upsert %s %s: %w", p.Category, p.LogicalPath(), err)
	}

	if !res.Outcome.Written() && !res.Linked {
		return res, nil
	}
	s.logger.Debug("catalog entry committed",
		logging.String(logging.FieldCategory, string(p.Category)),
		logging.String(logging.FieldLogicalPath, p.LogicalPath()),
		logging.String(logging.FieldIdentity, res.Entry.Identity),
		logging.String("outcome", string(res.Outcome)),
	)
	return res, nil
}

func (s *Store) commitTx(ctx context.Context, tx *sql.Tx, p *Prepared, link *Link) (Result, error) {
	fp := p.Fingerprints
	existing, err := entryByPath(ctx, tx, p.Category, fp.LogicalPath)
	if err != nil {
		return Result{}, fmt.Errorf("lookup path: %w", err)
	}

	var res Result
	if existing != nil && existing.ContentFingerprint == fp.Content {
		res = Result{Entry: *existing, Outcome: catalog.Unchanged}
	} else {
		if err := s.checkIdentity(ctx, tx, p); err != nil {
			return Result{}, err
		}
		if err := checkPathConflict(ctx, tx, p.Category, fp.LogicalPath); err != nil {
			return Result{}, err
		}
		if p.Category.HoldsImages() && !p.imageDone {
			return Result{}, errNeedImages
		}

		now := s.timestamp()
		if existing == nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fp.Identity, string(p.Category), p.FileName, fp.LogicalPath,
				fp.Content, fp.Path, p.CategoryTag, p.SizeBytes, now, now,
			); err != nil {
				return Result{}, fmt.Errorf("insert entry: %w", err)
			}
			res.Outcome = catalog.Inserted
		} else {
			if err := s.replaceIdentity(ctx, tx, existing.Identity, p, now); err != nil {
				return Result{}, err
			}
			res.Outcome = catalog.Updated
			res.PreviousIdentity = existing.Identity
		}

		if p.images != nil {
			if err := writeFingerprints(ctx, tx, fp.Identity, p.images, now); err != nil {
				return Result{}, err
			}
			res.Fingerprinted = true
		}
		res.FingerprintErr = p.imageErr

		entry, err := entryByIdentity(ctx, tx, fp.Identity)
		if err != nil || entry == nil {
			return Result{}, fmt.Errorf("reload entry: %w", errors.Join(err, ErrNotFound))
		}
		res.Entry = *entry
	}

	if link != nil {
		linked, err := s.linkTx(ctx, tx, *link, res.Entry.Identity)
		if err != nil {
			return Result{}, err
		}
		res.Linked = linked
	}
	return res, nil
}

// checkIdentity refuses an identity already owned by a different
// (category, path). Identities are derived from path and content, so this only
// trips when the same bytes at the same path are cataloged under two
// categories, or on a digest collision.
func (s *Store) checkIdentity(ctx context.Context, tx *sql.Tx, p *Prepared) error {
	owner, err := entryByIdentity(ctx, tx, p.Fingerprints.Identity)
	if err != nil {
		return fmt.Errorf("lookup identity: %w", err)
	}
	if owner == nil {
		return nil
	}
	if owner.Category == p.Category && owner.LogicalPath == p.Fingerprints.LogicalPath {
		return nil
	}
	s.logger.Error("identity collision",
		logging.Alert("identity_collision"),
		logging.String(logging.FieldIdentity, owner.Identity),
		logging.String("existing_category", string(owner.Category)),
		logging.String("existing_path", owner.LogicalPath),
		logging.String(logging.FieldCategory, string(p.Category)),
		logging.String(logging.FieldLogicalPath, p.Fingerprints.LogicalPath),
	)
	return fmt.Errorf("%w: %s already belongs to %s %s",
		ErrIdentityCollision, owner.Identity, owner.Category, owner.LogicalPath)
}

// checkPathConflict keeps archive paths unique across every category.
func checkPathConflict(ctx context.Context, tx *sql.Tx, category catalog.Category, logicalPath string) error {
	var (
		query string
		args  []any
	)
	if category == catalog.CategoryArchive {
		query = `SELECT category FROM catalog_entries WHERE logical_path = ? AND category <> ? LIMIT 1`
		args = []any{logicalPath, string(catalog.CategoryArchive)}
	} else {
		query = `SELECT category FROM catalog_entries WHERE logical_path = ? AND category = ? LIMIT 1`
		args = []any{logicalPath, string(catalog.CategoryArchive)}
	}
	var other string
	err := tx.QueryRowContext(ctx, query, args...).Scan(&other)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check path conflict: %w", err)
	}
	return fmt.Errorf("%w: %s is already cataloged as %s", ErrPathConflict, logicalPath, other)
}

// replaceIdentity rewrites an entry in place for new content and re-points
// every edge and drops the stale fingerprint row. Edge foreign keys are
// deferred, so the intermediate state is never checked.
func (s *Store) replaceIdentity(ctx context.Context, tx *sql.Tx, oldID string, p *Prepared, now string) error {
	fp := p.Fingerprints
	if _, err := tx.ExecContext(ctx,
		`UPDATE catalog_entries
            SET identity = ?, original_file_name = ?, content_fingerprint = ?,
                path_fingerprint = ?, category_tag = ?, size_bytes = ?, last_updated = ?
          WHERE identity = ?`,
		fp.Identity, p.FileName, fp.Content, fp.Path, p.CategoryTag, p.SizeBytes, now, oldID,
	); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	for _, stmt := range []string{
		`UPDATE containment_edges SET container_identity = ? WHERE container_identity = ?`,
		`UPDATE containment_edges SET content_identity = ? WHERE content_identity = ?`,
		`UPDATE composition_edges SET container_identity = ? WHERE container_identity = ?`,
		`UPDATE composition_edges SET image_identity = ? WHERE image_identity = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, fp.Identity, oldID); err != nil {
			return fmt.Errorf("re-point edges: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM image_fingerprints WHERE identity = ?`, oldID); err != nil {
		return fmt.Errorf("drop stale fingerprints: %w", err)
	}
	return nil
}

// LookupByIdentity returns the entry with the given identity.
func (s *Store) LookupByIdentity(ctx context.Context, id string) (*catalog.Entry, error) {
	entry, err := entryByIdentity(ensureContext(ctx), s.db, strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: identity %s", ErrNotFound, id)
	}
	return entry, nil
}

// LookupByPath returns the entry at logicalPath within category.
func (s *Store) LookupByPath(ctx context.Context, category catalog.Category, logicalPath string) (*catalog.Entry, error) {
	normalized := identity.NormalizePath(logicalPath)
	entry, err := entryByPath(ensureContext(ctx), s.db, category, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup path: %w", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, category, normalized)
	}
	return entry, nil
}

// FindByContent returns every entry whose bytes hash to contentFingerprint,
// i.e. exact duplicates regardless of path.
func (s *Store) FindByContent(ctx context.Context, contentFingerprint string) ([]catalog.Entry, error) {
	entries, err := queryEntries(ensureContext(ctx), s.db,
		`SELECT `+entryColumns+` FROM catalog_entries WHERE content_fingerprint = ? ORDER BY logical_path, category`,
		strings.ToLower(strings.TrimSpace(contentFingerprint)))
	if err != nil {
		return nil, fmt.Errorf("find by content: %w", err)
	}
	return entries, nil
}

// FindByPathFingerprint returns entries whose normalized path hashes to the
// given fast digest. Different paths may share a digest.
func (s *Store) FindByPathFingerprint(ctx context.Context, pathFingerprint string) ([]catalog.Entry, error) {
	entries, err := queryEntries(ensureContext(ctx), s.db,
		`SELECT `+entryColumns+` FROM catalog_entries WHERE path_fingerprint = ? ORDER BY logical_path, category`,
		strings.ToLower(strings.TrimSpace(pathFingerprint)))
	if err != nil {
		return nil, fmt.Errorf("find by path fingerprint: %w", err)
	}
	return entries, nil
}

// ListByCategory returns entries of the given categories ordered by path. No
// categories lists everything.
func (s *Store) ListByCategory(ctx context.Context, categories ...catalog.Category) ([]catalog.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM catalog_entries`
	args := make([]any, 0, len(categories))
	if len(categories) > 0 {
		query += ` WHERE category IN (` + makePlaceholders(len(categories)) + `)`
		for _, c := range categories {
			args = append(args, string(c))
		}
	}
	query += ` ORDER BY category, logical_path`
	entries, err := queryEntries(ensureContext(ctx), s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Remove deletes an entry, its fingerprints and every edge touching it in one
// transaction. It returns the number of entries removed (0 or 1).
func (s *Store) Remove(ctx context.Context, id string) (int64, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		edges, err := cascadeRemoveTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM image_fingerprints WHERE identity = ?`, id); err != nil {
			return fmt.Errorf("delete fingerprints: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries WHERE identity = ?`, id)
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if removed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if removed > 0 {
			s.logger.Debug("catalog entry removed",
				logging.String(logging.FieldIdentity, id),
				logging.Int64("edges_removed", edges),
			)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", id, err)
	}
	return removed, nil
}
