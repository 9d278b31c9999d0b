package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
)

// --- Mock services for command tests ---

type cliMockSearch struct {
	results []domain.SearchResult
	err     error
	gotOpts domain.SearchOptions
}

func (m *cliMockSearch) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type cliMockIndexer struct {
	changes    domain.ChangeSet
	detectErr  error
	summary    domain.RunSummary
	runErr     error
	gotDetect  domain.DetectOptions
	gotRunOpts driving.RunOptions
	runCalled  bool
}

func (m *cliMockIndexer) Detect(_ context.Context, opts domain.DetectOptions) (domain.ChangeSet, error) {
	m.gotDetect = opts
	if m.detectErr != nil {
		return domain.ChangeSet{}, m.detectErr
	}
	return m.changes, nil
}

func (m *cliMockIndexer) Run(_ context.Context, _ domain.ChangeSet, opts driving.RunOptions) (domain.RunSummary, error) {
	m.runCalled = true
	m.gotRunOpts = opts
	if m.runErr != nil {
		return domain.RunSummary{}, m.runErr
	}
	return m.summary, nil
}

func (m *cliMockIndexer) State() domain.DetectState { return domain.DetectStateIdle }

type cliMockSyncStore struct {
	state  domain.SyncState
	getErr error
}

func (m *cliMockSyncStore) Get(_ context.Context) (domain.SyncState, error) {
	if m.getErr != nil {
		return domain.SyncState{}, m.getErr
	}
	return m.state, nil
}

func (m *cliMockSyncStore) Save(_ context.Context, _ domain.SyncState) error { return nil }

type cliMockStore struct {
	stats    driven.IndexStats
	statsErr error
}

func (m *cliMockStore) Upsert(_ context.Context, _ []driven.VectorRecord) error     { return nil }
func (m *cliMockStore) DeleteKeys(_ context.Context, _ []string) error              { return nil }
func (m *cliMockStore) DeleteDocument(_ context.Context, _ string) error            { return nil }
func (m *cliMockStore) ListDocumentIDs(_ context.Context) ([]string, error)         { return nil, nil }
func (m *cliMockStore) Query(_ context.Context, _ string, _ int, _ driven.QueryFilter) ([]driven.QueryHit, error) {
	return nil, nil
}
func (m *cliMockStore) Stats(_ context.Context) (driven.IndexStats, error) {
	if m.statsErr != nil {
		return driven.IndexStats{}, m.statsErr
	}
	return m.stats, nil
}

// setupTestServices presets the wired globals with mocks and returns a
// cleanup restoring the lazy wiring.
func setupTestServices() func() {
	search := &cliMockSearch{results: []domain.SearchResult{
		{
			Key:      "doc1#0",
			Score:    0.92,
			Reranked: true,
			Metadata: domain.VectorMetadata{
				FileID:   "doc1",
				FileName: "Quarterly Plan",
				FileType: domain.FileTypeDocs,
			},
		},
	}}
	idx := &cliMockIndexer{
		changes: domain.ChangeSet{New: []domain.SourceDocument{{ID: "doc1", Name: "Quarterly Plan"}}},
		summary: domain.RunSummary{Processed: 1, Chunks: 3, StartedAt: time.Now()},
	}

	searchService = search
	indexer = idx
	syncStore = &cliMockSyncStore{getErr: domain.ErrNotFound}
	denseStore = &cliMockStore{stats: driven.IndexStats{Name: "dense-test", VectorCount: 10}}
	sparseStore = &cliMockStore{stats: driven.IndexStats{Name: "sparse-test", VectorCount: 10}}

	return func() {
		searchService = nil
		indexer = nil
		syncStore = nil
		denseStore = nil
		sparseStore = nil
		resetFlags()
	}
}

// resetFlags restores flag defaults between command executions.
func resetFlags() {
	searchLimit = 10
	searchJSON = false
	searchMinScore = 0
	searchFileTypes = nil
	refreshDryRun = false
	refreshForceFull = false
	refreshSince = ""
	refreshLimit = 0
	refreshWorkers = 0
	refreshFileTypes = nil
}
