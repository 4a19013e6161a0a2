package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"assetreg/internal/catalog"
	"assetreg/internal/cluster"
	"assetreg/internal/phash"
)

func writeFingerprints(ctx context.Context, tx *sql.Tx, id string, set *phash.Set, now string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO image_fingerprints (
            identity, gray_average, gray_difference, gray_perceptual,
            color_average, color_difference, color_perceptual,
            width, height, format, computed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		set.GrayAverage.String(), set.GrayDifference.String(), set.GrayPerceptual.String(),
		set.ColorAverage.String(), set.ColorDifference.String(), set.ColorPerceptual.String(),
		set.Width, set.Height, set.Format, now,
	); err != nil {
		return fmt.Errorf("write fingerprints: %w", err)
	}
	return nil
}

const fingerprintColumns = `f.gray_average, f.gray_difference, f.gray_perceptual,
        f.color_average, f.color_difference, f.color_perceptual,
        f.width, f.height, f.format`

func scanFingerprints(scanner interface{ Scan(dest ...any) error }, extra ...any) (phash.Set, error) {
	var (
		set phash.Set
		raw [6]string
	)
	dest := append([]any{}, extra...)
	dest = append(dest, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5], &set.Width, &set.Height, &set.Format)
	if err := scanner.Scan(dest...); err != nil {
		return phash.Set{}, err
	}
	targets := []*phash.Hash{
		&set.GrayAverage, &set.GrayDifference, &set.GrayPerceptual,
		&set.ColorAverage, &set.ColorDifference, &set.ColorPerceptual,
	}
	for i, value := range raw {
		h, err := phash.ParseHash(value)
		if err != nil {
			return phash.Set{}, err
		}
		*targets[i] = h
	}
	return set, nil
}

// Fingerprints returns the stored fingerprint set of an image entry.
func (s *Store) Fingerprints(ctx context.Context, id string) (phash.Set, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+fingerprintColumns+` FROM image_fingerprints f WHERE f.identity = ?`, id)
	set, err := scanFingerprints(row)
	if errors.Is(err, sql.ErrNoRows) {
		return phash.Set{}, fmt.Errorf("%w: no fingerprints for %s", ErrNotFound, id)
	}
	if err != nil {
		return phash.Set{}, fmt.Errorf("read fingerprints: %w", err)
	}
	return set, nil
}

// ImageSamples reads every fingerprinted image. The read is a single
// statement, so it sees one consistent snapshot even while ingestion runs.
func (s *Store) ImageSamples(ctx context.Context) ([]cluster.Sample, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT e.identity, e.logical_path, e.size_bytes, `+fingerprintColumns+`
          FROM image_fingerprints f JOIN catalog_entries e ON e.identity = f.identity
         ORDER BY e.logical_path`)
	if err != nil {
		return nil, fmt.Errorf("read image samples: %w", err)
	}
	defer rows.Close()

	var samples []cluster.Sample
	for rows.Next() {
		var sample cluster.Sample
		set, err := scanFingerprints(rows, &sample.Identity, &sample.Label, &sample.SizeBytes)
		if err != nil {
			return nil, fmt.Errorf("scan image sample: %w", err)
		}
		sample.Hashes = set
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Cluster groups every fingerprinted image in the registry.
func (s *Store) Cluster(ctx context.Context, opts cluster.Options) ([]cluster.Cluster, error) {
	samples, err := s.ImageSamples(ctx)
	if err != nil {
		return nil, err
	}
	return cluster.Run(ensureContext(ctx), samples, opts)
}

// Match is one image near a query image.
type Match struct {
	Entry    catalog.Entry
	Distance int
}

// SimilarTo returns images within maxDistance of the given image on one
// fingerprint kind, nearest first. The query image itself is excluded.
func (s *Store) SimilarTo(ctx context.Context, id string, kind phash.Kind, maxDistance int) ([]Match, error) {
	ctx = ensureContext(ctx)
	kind, err := phash.ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	if maxDistance < 0 {
		return nil, fmt.Errorf("max distance must not be negative, got %d", maxDistance)
	}
	query, err := s.Fingerprints(ctx, id)
	if err != nil {
		return nil, err
	}
	target := query.Get(kind)

	samples, err := s.ImageSamples(ctx)
	if err != nil {
		return nil, err
	}
	type hit struct {
		id       string
		distance int
	}
	var hits []hit
	for _, sample := range samples {
		if sample.Identity == strings.ToLower(strings.TrimSpace(id)) {
			continue
		}
		d, err := target.Distance(sample.Hashes.Get(kind))
		if err != nil || d > maxDistance {
			continue
		}
		hits = append(hits, hit{id: sample.Identity, distance: d})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].id < hits[j].id
	})

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		entry, err := entryByIdentity(ctx, s.db, h.id)
		if err != nil {
			return nil, fmt.Errorf("load match: %w", err)
		}
		if entry == nil {
			continue
		}
		matches = append(matches, Match{Entry: *entry, Distance: h.distance})
	}
	return matches, nil
}
