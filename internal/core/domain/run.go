package domain

import "time"

// RunMode selects how an indexing run treats remote writes.
type RunMode string

const (
	// RunModeApply issues real upsert/delete calls.
	RunModeApply RunMode = "apply"

	// RunModeDryRun executes detection and chunking but issues no
	// write or delete calls, reporting what would have changed.
	RunModeDryRun RunMode = "dry-run"
)

// DocumentFailure records a per-document error during an indexing run.
// A single bad document never aborts the run.
type DocumentFailure struct {
	DocumentID string
	Name       string
	Reason     string
}

// RunSummary is the structured outcome of an indexing run. A run always
// returns a summary rather than failing on partial errors.
type RunSummary struct {
	// RunID identifies the run in logs.
	RunID string

	// StartedAt is the run's start time; the watermark advances to this
	// value after all documents have been attempted.
	StartedAt time.Time

	// Processed counts documents whose chunks were fully written.
	Processed int

	// Chunks counts vectors upserted across processed documents.
	Chunks int

	// Deleted counts documents whose chunks were removed.
	Deleted int

	// Skipped counts documents skipped (empty content, inaccessible).
	Skipped int

	// Failures records per-document errors; processing continued past
	// each of them.
	Failures []DocumentFailure

	// Warnings records keys left present in one store but absent from
	// the other by a partial write failure. They are reported for
	// operator retry, never auto-healed.
	Warnings []ConsistencyWarning

	// Mode records whether the run applied changes or was a dry run.
	Mode RunMode
}

// Failed returns the number of failed documents.
func (s RunSummary) Failed() int {
	return len(s.Failures)
}
