package domain

import "time"

// ChangeSet classifies the source documents an indexing run must act on.
type ChangeSet struct {
	// New are documents whose ids were absent from the index.
	New []SourceDocument

	// Modified are indexed documents whose modified time passed the
	// detection floor. Their entire chunk range is replaced on reindex.
	Modified []SourceDocument

	// Deleted are document ids present in the index but absent from the
	// current listing. Only delete calls are issued for them.
	Deleted []string
}

// Empty reports whether the change set requires no work.
func (c ChangeSet) Empty() bool {
	return len(c.New) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the number of documents the run will touch.
func (c ChangeSet) Total() int {
	return len(c.New) + len(c.Modified) + len(c.Deleted)
}

// DetectState tracks the change detector through a single run.
type DetectState string

const (
	DetectStateIdle        DetectState = "idle"
	DetectStateListing     DetectState = "listing"
	DetectStateClassifying DetectState = "classifying"
	DetectStateDone        DetectState = "done"
)

// DetectOptions configure a change detection run.
type DetectOptions struct {
	// Watermark is the last successful synchronisation time. Zero means
	// no previous refresh is recorded.
	Watermark time.Time

	// Since overrides the watermark as the comparison floor without
	// touching the stored watermark.
	Since time.Time

	// ForceFull bypasses the floor comparison: every listed document is
	// classified as modified. Deleted is still computed from the
	// listing-vs-store diff.
	ForceFull bool

	// FileTypes restricts the listing to the given type tags.
	// Empty means all supported types.
	FileTypes []FileType

	// Limit bounds the number of new/modified documents returned.
	// Zero means no limit.
	Limit int
}

// Floor returns the effective comparison floor in UTC.
func (o DetectOptions) Floor() time.Time {
	if !o.Since.IsZero() {
		return o.Since.UTC()
	}
	return o.Watermark.UTC()
}

// SyncState is the caller-persisted synchronisation bookkeeping.
// The engine reads it at run start and writes it back only after a run
// completes; it is never hidden module-level state.
type SyncState struct {
	// LastRefreshTime is the watermark: monotonically non-decreasing
	// except on an explicit forced full resynchronisation.
	LastRefreshTime time.Time `toml:"last_refresh_time"`

	// IndexedFiles is the document count recorded after the last run.
	IndexedFiles int `toml:"indexed_files"`

	// IndexedChunks is the chunk count recorded after the last run.
	IndexedChunks int `toml:"indexed_chunks"`
}
