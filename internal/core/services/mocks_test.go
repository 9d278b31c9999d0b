package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/executor"
)

// --- Mock implementations shared by the service tests ---

// mockSource implements driven.ContentSource.
type mockSource struct {
	mu         sync.Mutex
	docs       []domain.SourceDocument
	pageSize   int
	listErr    error
	listCalls  int
	gotFilters []driven.ListFilter

	content    map[string]string
	fetchErr   map[string]error
	fetchCalls int
}

func (m *mockSource) List(_ context.Context, filter driven.ListFilter, pageToken string) (driven.ListPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gotFilters = append(m.gotFilters, filter)

	m.listCalls++
	if m.listErr != nil {
		return driven.ListPage{}, m.listErr
	}

	size := m.pageSize
	if size <= 0 {
		size = len(m.docs)
	}

	start := 0
	if pageToken != "" {
		for i, d := range m.docs {
			if d.ID == pageToken {
				start = i
				break
			}
		}
	}

	end := start + size
	next := ""
	if end < len(m.docs) {
		next = m.docs[end].ID
	} else {
		end = len(m.docs)
	}

	return driven.ListPage{Documents: m.docs[start:end], NextPageToken: next}, nil
}

func (m *mockSource) Fetch(_ context.Context, doc domain.SourceDocument) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetchCalls++
	if err, ok := m.fetchErr[doc.ID]; ok {
		return "", err
	}
	return m.content[doc.ID], nil
}

func (m *mockSource) Validate(_ context.Context) error { return nil }

// storeOp records one mutation for ordering assertions.
type storeOp struct {
	kind string // "upsert", "deleteDoc", "deleteKeys"
	doc  string
	keys []string
}

// mockStore implements driven.VectorStore.
type mockStore struct {
	mu  sync.Mutex
	ops []storeOp

	upserts    [][]driven.VectorRecord
	upsertErr  error
	deleteErr  error
	queryHits  []driven.QueryHit
	queryErr   error
	queryCalls int
	docIDs     []string
	listErr    error
	stats      driven.IndexStats
	statsErr   error
}

func (m *mockStore) Upsert(_ context.Context, records []driven.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	batch := make([]driven.VectorRecord, len(records))
	copy(batch, records)
	m.upserts = append(m.upserts, batch)

	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	doc := ""
	if len(records) > 0 {
		doc = records[0].Metadata.FileID
	}
	m.ops = append(m.ops, storeOp{kind: "upsert", doc: doc, keys: keys})
	return nil
}

func (m *mockStore) DeleteKeys(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.ops = append(m.ops, storeOp{kind: "deleteKeys", keys: keys})
	return nil
}

func (m *mockStore) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.ops = append(m.ops, storeOp{kind: "deleteDoc", doc: documentID})
	return nil
}

func (m *mockStore) Query(_ context.Context, _ string, _ int, _ driven.QueryFilter) ([]driven.QueryHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryHits, nil
}

func (m *mockStore) ListDocumentIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.docIDs, nil
}

func (m *mockStore) Stats(_ context.Context) (driven.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statsErr != nil {
		return driven.IndexStats{}, m.statsErr
	}
	return m.stats, nil
}

// allUpsertedKeys flattens every upserted batch into one key list.
func (m *mockStore) allUpsertedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for _, batch := range m.upserts {
		for _, r := range batch {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// opsForDoc returns the mutation kinds recorded for one document in order.
func (m *mockStore) opsForDoc(documentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var kinds []string
	for _, op := range m.ops {
		if op.doc == documentID {
			kinds = append(kinds, op.kind)
		}
	}
	return kinds
}

// mockReranker implements driven.Reranker.
type mockReranker struct {
	mu      sync.Mutex
	scores  []driven.RerankScore
	err     error
	gotDocs []driven.RerankDocument
	calls   int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, docs []driven.RerankDocument, _ int) ([]driven.RerankScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.gotDocs = docs
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

// mockSyncStore implements driven.SyncStateStore.
type mockSyncStore struct {
	mu     sync.Mutex
	state  domain.SyncState
	getErr error
	saved  []domain.SyncState
}

func (m *mockSyncStore) Get(_ context.Context) (domain.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return domain.SyncState{}, m.getErr
	}
	return m.state, nil
}

func (m *mockSyncStore) Save(_ context.Context, state domain.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, state)
	return nil
}

func (m *mockSyncStore) lastSaved() (domain.SyncState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.saved) == 0 {
		return domain.SyncState{}, false
	}
	return m.saved[len(m.saved)-1], true
}

// newServiceTestExecutor builds an executor that never throttles and
// backs off in microseconds.
func newServiceTestExecutor() *executor.Executor {
	rates := make(map[executor.EndpointClass]executor.RateConfig, len(executor.DefaultRates))
	for class := range executor.DefaultRates {
		rates[class] = executor.RateConfig{RequestsPerSecond: 100000, BurstSize: 100000}
	}
	return executor.New(executor.Config{
		Rates:       rates,
		BaseBackoff: time.Microsecond,
		MaxBackoff:  time.Microsecond,
	})
}
