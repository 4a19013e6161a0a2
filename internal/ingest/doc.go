// Package ingest runs batch ingestion passes over files handed over by
// extraction collaborators.
//
// A pass assigns a batch ID, orders files so containers are committed before
// the content they yield, computes digests and image fingerprints on a
// bounded worker pool, and commits each file with its parent edge as one
// registry transaction. Local failures are recorded per file and never abort
// the pass; only cancellation stops it early.
package ingest
