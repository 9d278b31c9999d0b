package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/chunker"
	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/drivesearch-cli/internal/executor"
	"github.com/custodia-labs/drivesearch-cli/internal/logger"
)

// Ensure Indexer implements the interface.
var _ driving.Indexer = (*Indexer)(nil)

// Indexer coordinates change detection and index synchronisation
// against the two vector stores.
type Indexer struct {
	source    driven.ContentSource
	dense     driven.VectorStore
	sparse    driven.VectorStore
	syncStore driven.SyncStateStore
	chunker   *chunker.Chunker
	exec      *executor.Executor

	mu    sync.RWMutex
	state domain.DetectState

	// now is replaceable for tests.
	now func() time.Time
}

// NewIndexer creates an indexer. The sync store may be nil, in which
// case the watermark is never persisted (useful for dry runs in tests).
func NewIndexer(
	source driven.ContentSource,
	dense driven.VectorStore,
	sparse driven.VectorStore,
	syncStore driven.SyncStateStore,
	ch *chunker.Chunker,
	exec *executor.Executor,
) *Indexer {
	return &Indexer{
		source:    source,
		dense:     dense,
		sparse:    sparse,
		syncStore: syncStore,
		chunker:   ch,
		exec:      exec,
		state:     domain.DetectStateIdle,
		now:       time.Now,
	}
}

// State reports the detector's current phase.
func (x *Indexer) State() domain.DetectState {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

func (x *Indexer) setState(s domain.DetectState) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = s
}

// Detect classifies source documents into new/modified/deleted.
//
// A listed document absent from the index is new. A listed, indexed
// document is modified when its modified time is strictly after the
// effective floor (the watermark, or the Since override); with
// ForceFull every listed document is modified. An indexed id absent
// from the listing is deleted. All timestamps are normalised to UTC
// before comparison.
func (x *Indexer) Detect(ctx context.Context, opts domain.DetectOptions) (domain.ChangeSet, error) {
	logger.Section("Change Detection")
	x.setState(domain.DetectStateListing)
	defer x.setState(domain.DetectStateDone)

	listed, err := x.listAll(ctx, opts.FileTypes)
	if err != nil {
		return domain.ChangeSet{}, fmt.Errorf("list source: %w", err)
	}
	logger.Debug("Source listing: %d documents", len(listed))

	indexed, err := x.listIndexed(ctx)
	if err != nil {
		return domain.ChangeSet{}, fmt.Errorf("list indexed ids: %w", err)
	}
	logger.Debug("Index holds %d documents", len(indexed))

	x.setState(domain.DetectStateClassifying)

	floor := opts.Floor()
	var changes domain.ChangeSet
	listedIDs := make(map[string]bool, len(listed))

	for _, doc := range listed {
		listedIDs[doc.ID] = true

		switch {
		case !indexed[doc.ID]:
			changes.New = append(changes.New, doc)
		case opts.ForceFull:
			changes.Modified = append(changes.Modified, doc)
		case doc.ModifiedTime.UTC().After(floor):
			changes.Modified = append(changes.Modified, doc)
		}
	}

	for id := range indexed {
		if !listedIDs[id] {
			changes.Deleted = append(changes.Deleted, id)
		}
	}
	sort.Strings(changes.Deleted)

	if opts.Limit > 0 {
		changes = applyLimit(changes, opts.Limit)
	}

	logger.Info("Detected %d new, %d modified, %d deleted",
		len(changes.New), len(changes.Modified), len(changes.Deleted))
	return changes, nil
}

// listAll pages through the content source via the executor. The
// modified-time floor is never pushed into the listing: the deletion
// diff needs every live document id, and the floor comparison happens
// during classification.
func (x *Indexer) listAll(ctx context.Context, types []domain.FileType) ([]domain.SourceDocument, error) {
	filter := driven.ListFilter{FileTypes: types}

	var docs []domain.SourceDocument
	pageToken := ""
	for {
		var page driven.ListPage
		err := x.exec.Execute(ctx, executor.ClassList, func(ctx context.Context) error {
			var callErr error
			page, callErr = x.source.List(ctx, filter, pageToken)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		docs = append(docs, page.Documents...)
		if page.NextPageToken == "" {
			return docs, nil
		}
		pageToken = page.NextPageToken
	}
}

// listIndexed returns the set of document ids present in the dense
// store. The reserved metadata record is excluded by the store.
func (x *Indexer) listIndexed(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := x.exec.Execute(ctx, executor.ClassQuery, func(ctx context.Context) error {
		var callErr error
		ids, callErr = x.dense.ListDocumentIDs(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// applyLimit bounds new+modified to limit documents, new first.
func applyLimit(changes domain.ChangeSet, limit int) domain.ChangeSet {
	if len(changes.New) >= limit {
		changes.New = changes.New[:limit]
		changes.Modified = nil
		return changes
	}
	remaining := limit - len(changes.New)
	if len(changes.Modified) > remaining {
		changes.Modified = changes.Modified[:remaining]
	}
	return changes
}
