package catalog

import "time"

// Entry is one catalogued file. The shape is identical for every category.
type Entry struct {
	Identity           string
	Category           Category
	OriginalFileName   string
	LogicalPath        string
	ContentFingerprint string
	PathFingerprint    string
	CategoryTag        string
	SizeBytes          int64
	FirstSeen          time.Time
	LastUpdated        time.Time
}

// UpsertResult reports which branch of the upsert state machine ran.
type UpsertResult string

const (
	Inserted  UpsertResult = "inserted"
	Updated   UpsertResult = "updated"
	Unchanged UpsertResult = "unchanged"
)

// Written reports whether the upsert changed stored state.
func (r UpsertResult) Written() bool {
	return r == Inserted || r == Updated
}
