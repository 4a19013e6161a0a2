// Package registry persists the asset catalog, the relationship graph and the
// perceptual fingerprints in one SQLite database.
//
// Every catalog write is a single immediate transaction: the entry row, its
// fingerprint row and any declared parent edge commit together or not at all.
// Edge foreign keys are deferred, and removal deletes edges explicitly before
// the entry, so a commit can never leave a dangling edge behind. Writers for
// the same (category, logical path) are serialized in-process by striped
// locks and across processes by the UNIQUE constraint plus busy retries.
package registry
