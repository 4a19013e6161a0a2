// Package logging assembles structured slog loggers and formatting helpers used
// across the asset registry.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so ingestion code can tag log
// lines with batch IDs, categories and logical paths. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
