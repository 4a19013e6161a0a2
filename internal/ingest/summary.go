package ingest

import (
	"fmt"
	"time"

	"assetreg/internal/catalog"
	"assetreg/internal/registry"
)

// Outcome is the result of ingesting one file.
type Outcome struct {
	LogicalPath   string
	Category      catalog.Category
	Identity      string
	Result        catalog.UpsertResult
	Linked        bool
	Fingerprinted bool
	// Severity is SeverityNone for clean commits. Degraded outcomes are
	// committed; every other severity means nothing was written.
	Severity registry.Severity
	Err      error

	done bool
}

// Committed reports whether the file's entry is in the registry.
func (o Outcome) Committed() bool {
	return o.Result != ""
}

func (o *Outcome) apply(res registry.Result) {
	o.Identity = res.Entry.Identity
	o.Category = res.Entry.Category
	o.Result = res.Outcome
	o.Linked = res.Linked
	o.Fingerprinted = res.Fingerprinted
	if res.FingerprintErr != nil {
		o.Err = res.FingerprintErr
		o.Severity = registry.Classify(res.FingerprintErr)
	}
}

// Summary collects the outcomes of one pass.
type Summary struct {
	BatchID  string
	Outcomes []Outcome

	Inserted      int
	Updated       int
	Unchanged     int
	Fingerprinted int
	Degraded      int
	Rejected      int
	Fatal         int
	Transient     int
	Duration      time.Duration
}

func (s *Summary) tally() {
	for _, o := range s.Outcomes {
		switch o.Result {
		case catalog.Inserted:
			s.Inserted++
		case catalog.Updated:
			s.Updated++
		case catalog.Unchanged:
			s.Unchanged++
		}
		if o.Fingerprinted {
			s.Fingerprinted++
		}
		switch o.Severity {
		case registry.SeverityDegraded:
			s.Degraded++
		case registry.SeverityRejected:
			s.Rejected++
		case registry.SeverityFatal:
			s.Fatal++
		case registry.SeverityTransient:
			s.Transient++
		}
	}
}

// Failed returns the outcomes whose file was not committed.
func (s Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Err != nil && !o.Committed() {
			out = append(out, o)
		}
	}
	return out
}

// String renders the counters on one line.
func (s Summary) String() string {
	return fmt.Sprintf("batch %s: %d inserted, %d updated, %d unchanged, %d fingerprinted, %d degraded, %d rejected, %d fatal, %d transient",
		s.BatchID, s.Inserted, s.Updated, s.Unchanged, s.Fingerprinted, s.Degraded, s.Rejected, s.Fatal, s.Transient)
}
