package driven

import (
	"context"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
)

// SyncStateStore persists the watermark and counters between runs.
// The indexing pipeline is the single writer; the change detector reads
// the state at run start. Returns domain.ErrNotFound when no state has
// been recorded yet.
type SyncStateStore interface {
	Get(ctx context.Context) (domain.SyncState, error)
	Save(ctx context.Context, state domain.SyncState) error
}
