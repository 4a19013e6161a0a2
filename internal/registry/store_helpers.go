package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"assetreg/internal/catalog"
)

const entryColumns = `identity, category, original_file_name, logical_path,
        content_fingerprint, path_fingerprint, category_tag, size_bytes,
        first_seen, last_updated`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*catalog.Entry, error) {
	var (
		entry       catalog.Entry
		category    string
		firstSeen   string
		lastUpdated string
	)
	if err := scanner.Scan(
		&entry.Identity,
		&category,
		&entry.OriginalFileName,
		&entry.LogicalPath,
		&entry.ContentFingerprint,
		&entry.PathFingerprint,
		&entry.CategoryTag,
		&entry.SizeBytes,
		&firstSeen,
		&lastUpdated,
	); err != nil {
		return nil, err
	}
	entry.Category = catalog.Category(category)
	if ts, err := parseTimeString(firstSeen); err == nil {
		entry.FirstSeen = ts
	}
	if ts, err := parseTimeString(lastUpdated); err == nil {
		entry.LastUpdated = ts
	}
	return &entry, nil
}

// queryEntry returns nil, nil when no row matches.
func queryEntry(ctx context.Context, q querier, where string, args ...any) (*catalog.Entry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM catalog_entries WHERE `+where, args...)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]catalog.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func entryByIdentity(ctx context.Context, q querier, id string) (*catalog.Entry, error) {
	return queryEntry(ctx, q, `identity = ?`, id)
}

func entryByPath(ctx context.Context, q querier, category catalog.Category, logicalPath string) (*catalog.Entry, error) {
	return queryEntry(ctx, q, `category = ? AND logical_path = ?`, string(category), logicalPath)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
