package driving

import (
	"context"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// Indexer coordinates change detection and index synchronisation.
type Indexer interface {
	// Detect classifies source documents into new/modified/deleted
	// against the stored watermark (or the overrides in opts).
	Detect(ctx context.Context, opts domain.DetectOptions) (domain.ChangeSet, error)

	// Run executes an indexing run over a change set and returns its
	// structured outcome. Per-document failures are recorded in the
	// summary, never raised.
	Run(ctx context.Context, changes domain.ChangeSet, opts RunOptions) (domain.RunSummary, error)

	// State reports the detector's current phase for progress display.
	State() domain.DetectState
}

// RunOptions configure an indexing run.
type RunOptions struct {
	// DryRun executes detection and chunking but issues no remote
	// writes or deletes.
	DryRun bool

	// Workers bounds in-run document concurrency (default 4).
	Workers int

	// BatchSize bounds vectors per upsert call (default 96).
	BatchSize int
}
