// Package assetreg catalogs extracted game assets, tracks which archive or
// texture container yielded each file, and finds near-duplicate textures by
// perceptual hashing.
//
// Collaborators that unpack proprietary formats hand files to Registry.Ingest
// as (logical path, bytes, category tag, optional container) tuples. The
// registry stores one entry per (category, logical path) in SQLite, links
// entries to their containers, fingerprints images, and clusters them on
// demand.
package assetreg
