package registry

import (
	"context"
	"errors"

	"assetreg/internal/phash"
)

var (
	// ErrNotFound reports a lookup that matched no entry.
	ErrNotFound = errors.New("entry not found")
	// ErrDanglingReference reports an edge endpoint missing from its catalog.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrMultipleOwners reports an attempt to give a child a second parent.
	ErrMultipleOwners = errors.New("multiple owners")
	// ErrCycle reports a containment edge that would make an archive its own ancestor.
	ErrCycle = errors.New("containment cycle")
	// ErrIdentityCollision reports two different (category, path) pairs
	// resolving to one identity. Never resolved automatically.
	ErrIdentityCollision = errors.New("identity collision")
	// ErrPathConflict reports an archive path already used by another category,
	// or a path already claimed by an archive.
	ErrPathConflict = errors.New("logical path conflict")
	// ErrInvalidEntry reports input that cannot be cataloged.
	ErrInvalidEntry = errors.New("invalid entry")
)

// Severity classifies an error for the ingestion pass.
type Severity string

const (
	// SeverityNone is returned for nil errors.
	SeverityNone Severity = ""
	// SeverityFatal marks data-integrity failures that must be surfaced loudly.
	SeverityFatal Severity = "fatal"
	// SeverityRejected marks input refused for referential or path reasons.
	SeverityRejected Severity = "rejected"
	// SeverityDegraded marks work that committed without fingerprints.
	SeverityDegraded Severity = "degraded"
	// SeverityTransient marks failures worth retrying (busy database, cancellation, I/O).
	SeverityTransient Severity = "transient"
)

// Classify maps an error to the severity the ingestion pass should record.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, ErrIdentityCollision):
		return SeverityFatal
	case errors.Is(err, ErrDanglingReference),
		errors.Is(err, ErrMultipleOwners),
		errors.Is(err, ErrCycle),
		errors.Is(err, ErrPathConflict),
		errors.Is(err, ErrInvalidEntry),
		errors.Is(err, ErrNotFound):
		return SeverityRejected
	case errors.Is(err, phash.ErrUnsupportedImageFormat):
		return SeverityDegraded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return SeverityTransient
	default:
		return SeverityTransient
	}
}
