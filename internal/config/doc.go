// Package config loads, normalizes, and validates asset registry configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the ASSETREG_DATA_DIR environment
// fallback. The Config type centralizes every knob the registry, the
// fingerprinter, the clusterer and the ingestion pass need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
