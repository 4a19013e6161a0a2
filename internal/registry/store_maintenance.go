package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"assetreg/internal/catalog"
)

// Stats summarizes registry contents.
type Stats struct {
	Entries          map[catalog.Category]int
	Bytes            map[catalog.Category]int64
	ContainmentEdges int
	CompositionEdges int
	Fingerprinted    int
}

// Total returns the number of catalog entries across categories.
func (s Stats) Total() int {
	total := 0
	for _, n := range s.Entries {
		total += n
	}
	return total
}

// Stats counts entries per category plus edges and fingerprint rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{
		Entries: make(map[catalog.Category]int),
		Bytes:   make(map[catalog.Category]int64),
	}
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(1), COALESCE(SUM(size_bytes), 0) FROM catalog_entries GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("registry stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			count    int
			bytes    int64
		)
		if err := rows.Scan(&category, &count, &bytes); err != nil {
			return Stats{}, err
		}
		stats.Entries[catalog.Category(category)] = count
		stats.Bytes[catalog.Category(category)] = bytes
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = s.db.QueryRowContext(ctx, `
        SELECT (SELECT COUNT(1) FROM containment_edges),
               (SELECT COUNT(1) FROM composition_edges),
               (SELECT COUNT(1) FROM image_fingerprints)`,
	).Scan(&stats.ContainmentEdges, &stats.CompositionEdges, &stats.Fingerprinted)
	if err != nil {
		return Stats{}, fmt.Errorf("edge stats: %w", err)
	}
	return stats, nil
}

// DatabaseHealth reports diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	ForeignKeyErrors int
	TotalEntries     int
	Error            string
}

var expectedTables = []string{"catalog_entries", "containment_edges", "composition_edges", "image_fingerprints", "schema_version"}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("registry database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat registry database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("registry database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping registry database: %w", err)
	}
	health.DatabaseReadable = true

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	for _, want := range expectedTables {
		if !slices.Contains(tables, want) {
			health.MissingTables = append(health.MissingTables, want)
		}
	}

	if slices.Contains(tables, "schema_version") {
		if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("read schema version: %w", err)
		}
	}
	if slices.Contains(tables, "catalog_entries") {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM catalog_entries").Scan(&health.TotalEntries); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count entries: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	fkRows, err := s.db.QueryContext(connCtx, "PRAGMA foreign_key_check")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("foreign key check: %w", err)
	}
	for fkRows.Next() {
		health.ForeignKeyErrors++
	}
	fkRows.Close()

	return health, nil
}

// Healthy reports whether the database passed every check.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists && h.DatabaseReadable && len(h.MissingTables) == 0 &&
		h.IntegrityCheck && h.ForeignKeyErrors == 0 && h.Error == ""
}
