package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"assetreg/internal/catalog"
	"assetreg/internal/logging"
)

// EdgeKind names one of the two relationship kinds.
type EdgeKind string

const (
	EdgeNone        EdgeKind = ""
	EdgeContainment EdgeKind = "containment"
	EdgeComposition EdgeKind = "composition"
)

// ParseEdgeKind accepts "containment", "composition" and "none" or empty.
func ParseEdgeKind(value string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return EdgeNone, nil
	case string(EdgeContainment):
		return EdgeContainment, nil
	case string(EdgeComposition):
		return EdgeComposition, nil
	default:
		return EdgeNone, fmt.Errorf("unknown link kind %q", value)
	}
}

// Link declares the parent edge of a record.
type Link struct {
	Kind      EdgeKind
	Container string
	// Tag is the content category tag stored on containment edges. Empty uses
	// the child's own tag.
	Tag string
}

// Child is one entry owned by a container.
type Child struct {
	Identity    string
	CategoryTag string
	Kind        EdgeKind
	Category    catalog.Category
	LogicalPath string
}

// Parent is the owner of an entry under one edge kind.
type Parent struct {
	Identity    string
	Kind        EdgeKind
	Category    catalog.Category
	LogicalPath string
}

// maxContainmentDepth bounds the ancestor walk used for cycle detection.
const maxContainmentDepth = 64

func (s *Store) linkTx(ctx context.Context, tx *sql.Tx, link Link, child string) (bool, error) {
	switch link.Kind {
	case EdgeContainment:
		return s.linkContainmentTx(ctx, tx, link.Container, child, link.Tag)
	case EdgeComposition:
		return s.linkCompositionTx(ctx, tx, link.Container, child)
	default:
		return false, fmt.Errorf("%w: unknown link kind %q", ErrInvalidEntry, link.Kind)
	}
}

// endpoints loads both ends of an edge and checks each belongs to the
// required catalog. An entry of the wrong category is as absent as a missing
// one.
func endpoints(ctx context.Context, tx *sql.Tx, container string, containerCat catalog.Category, child string, childCat catalog.Category) (*catalog.Entry, *catalog.Entry, error) {
	parent, err := entryByIdentity(ctx, tx, container)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup container: %w", err)
	}
	if parent == nil || parent.Category != containerCat {
		return nil, nil, fmt.Errorf("%w: no %s entry %s", ErrDanglingReference, containerCat, container)
	}
	entry, err := entryByIdentity(ctx, tx, child)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup child: %w", err)
	}
	if entry == nil || (childCat != "" && entry.Category != childCat) {
		want := string(childCat)
		if want == "" {
			want = "catalog"
		}
		return nil, nil, fmt.Errorf("%w: no %s entry %s", ErrDanglingReference, want, child)
	}
	return parent, entry, nil
}

func (s *Store) linkContainmentTx(ctx context.Context, tx *sql.Tx, container, content, tag string) (bool, error) {
	container = strings.ToLower(strings.TrimSpace(container))
	content = strings.ToLower(strings.TrimSpace(content))
	_, child, err := endpoints(ctx, tx, container, catalog.CategoryArchive, content, "")
	if err != nil {
		return false, err
	}
	if container == content {
		return false, fmt.Errorf("%w: %s cannot contain itself", ErrCycle, container)
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		tag = child.CategoryTag
	}

	var owner, ownerTag string
	err = tx.QueryRowContext(ctx,
		`SELECT container_identity, content_category_tag FROM containment_edges WHERE content_identity = ?`, content,
	).Scan(&owner, &ownerTag)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("lookup containment owner: %w", err)
	case owner != container:
		return false, fmt.Errorf("%w: %s is already contained by %s", ErrMultipleOwners, content, owner)
	case ownerTag == tag:
		return false, nil
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE containment_edges SET content_category_tag = ? WHERE content_identity = ?`, tag, content,
		); err != nil {
			return false, fmt.Errorf("retag containment: %w", err)
		}
		return true, nil
	}

	if child.Category == catalog.CategoryArchive {
		if err := checkAncestry(ctx, tx, container, content); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO containment_edges (container_identity, content_identity, content_category_tag, created_at)
         VALUES (?, ?, ?, ?)`,
		container, content, tag, s.timestamp(),
	); err != nil {
		return false, fmt.Errorf("insert containment: %w", err)
	}
	return true, nil
}

// checkAncestry rejects a nested archive edge that would make content its
// own ancestor.
func checkAncestry(ctx context.Context, tx *sql.Tx, container, content string) error {
	current := container
	for depth := 0; depth < maxContainmentDepth; depth++ {
		var parent string
		err := tx.QueryRowContext(ctx,
			`SELECT container_identity FROM containment_edges WHERE content_identity = ?`, current,
		).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walk containment ancestry: %w", err)
		}
		if parent == content {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycle, content, container)
		}
		current = parent
	}
	return fmt.Errorf("%w: containment deeper than %d levels", ErrCycle, maxContainmentDepth)
}

func (s *Store) linkCompositionTx(ctx context.Context, tx *sql.Tx, container, image string) (bool, error) {
	container = strings.ToLower(strings.TrimSpace(container))
	image = strings.ToLower(strings.TrimSpace(image))
	if _, _, err := endpoints(ctx, tx, container, catalog.CategoryTextureContainer, image, catalog.CategoryExtractedImage); err != nil {
		return false, err
	}

	var owner string
	err := tx.QueryRowContext(ctx,
		`SELECT container_identity FROM composition_edges WHERE image_identity = ?`, image,
	).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("lookup composition owner: %w", err)
	case owner == container:
		return false, nil
	default:
		return false, fmt.Errorf("%w: image %s already belongs to %s", ErrMultipleOwners, image, owner)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO composition_edges (container_identity, image_identity, created_at) VALUES (?, ?, ?)`,
		container, image, s.timestamp(),
	); err != nil {
		return false, fmt.Errorf("insert composition: %w", err)
	}
	return true, nil
}

// LinkContainment records that archive container yielded content. It is
// idempotent for an existing edge and rejects a second archive.
func (s *Store) LinkContainment(ctx context.Context, container, content, tag string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.linkContainmentTx(ctx, tx, container, content, tag)
		return err
	})
	if err != nil {
		return fmt.Errorf("link containment: %w", err)
	}
	return nil
}

// LinkComposition records that texture container embeds image. An image has
// at most one container.
func (s *Store) LinkComposition(ctx context.Context, container, image string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := s.linkCompositionTx(ctx, tx, container, image)
		return err
	})
	if err != nil {
		return fmt.Errorf("link composition: %w", err)
	}
	return nil
}

// ChildrenOf returns every entry owned by container under either edge kind,
// ordered by logical path.
func (s *Store) ChildrenOf(ctx context.Context, container string) ([]Child, error) {
	ctx = ensureContext(ctx)
	container = strings.ToLower(strings.TrimSpace(container))
	rows, err := s.db.QueryContext(ctx, `
        SELECT e.identity, c.content_category_tag, 'containment', e.category, e.logical_path
          FROM containment_edges c JOIN catalog_entries e ON e.identity = c.content_identity
         WHERE c.container_identity = ?
        UNION ALL
        SELECT e.identity, e.category_tag, 'composition', e.category, e.logical_path
          FROM composition_edges c JOIN catalog_entries e ON e.identity = c.image_identity
         WHERE c.container_identity = ?
         ORDER BY 5, 1`, container, container)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", container, err)
	}
	defer rows.Close()

	var children []Child
	for rows.Next() {
		var (
			child    Child
			kind     string
			category string
		)
		if err := rows.Scan(&child.Identity, &child.CategoryTag, &kind, &category, &child.LogicalPath); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		child.Kind = EdgeKind(kind)
		child.Category = catalog.Category(category)
		children = append(children, child)
	}
	return children, rows.Err()
}

// ParentOf returns the owners of id: at most one per edge kind.
func (s *Store) ParentOf(ctx context.Context, id string) ([]Parent, error) {
	ctx = ensureContext(ctx)
	id = strings.ToLower(strings.TrimSpace(id))
	rows, err := s.db.QueryContext(ctx, `
        SELECT e.identity, 'containment', e.category, e.logical_path
          FROM containment_edges c JOIN catalog_entries e ON e.identity = c.container_identity
         WHERE c.content_identity = ?
        UNION ALL
        SELECT e.identity, 'composition', e.category, e.logical_path
          FROM composition_edges c JOIN catalog_entries e ON e.identity = c.container_identity
         WHERE c.image_identity = ?`, id, id)
	if err != nil {
		return nil, fmt.Errorf("parents of %s: %w", id, err)
	}
	defer rows.Close()

	var parents []Parent
	for rows.Next() {
		var (
			parent   Parent
			kind     string
			category string
		)
		if err := rows.Scan(&parent.Identity, &kind, &category, &parent.LogicalPath); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		parent.Kind = EdgeKind(kind)
		parent.Category = catalog.Category(category)
		parents = append(parents, parent)
	}
	return parents, rows.Err()
}

// CascadeRemove deletes every edge touching id and returns how many were
// removed. Remove calls it inside its own transaction.
func (s *Store) CascadeRemove(ctx context.Context, id string) (int64, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = cascadeRemoveTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cascade remove %s: %w", id, err)
	}
	if removed > 0 {
		s.logger.Debug("edges removed", logging.String(logging.FieldIdentity, id), logging.Int64("edges", removed))
	}
	return removed, nil
}

func cascadeRemoveTx(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	var total int64
	for _, stmt := range []string{
		`DELETE FROM containment_edges WHERE container_identity = ? OR content_identity = ?`,
		`DELETE FROM composition_edges WHERE container_identity = ? OR image_identity = ?`,
	} {
		res, err := tx.ExecContext(ctx, stmt, id, id)
		if err != nil {
			return 0, fmt.Errorf("delete edges: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

// EdgeCount returns how many edges of both kinds reference id.
func (s *Store) EdgeCount(ctx context.Context, id string) (int, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), `
        SELECT (SELECT COUNT(1) FROM containment_edges WHERE container_identity = ? OR content_identity = ?)
             + (SELECT COUNT(1) FROM composition_edges WHERE container_identity = ? OR image_identity = ?)`,
		id, id, id, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count edges: %w", err)
	}
	return count, nil
}
