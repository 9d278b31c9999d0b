package pinecone

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

func newTestStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewStore(Config{
		APIKey:    "test-key",
		Host:      server.URL,
		Namespace: "docs",
		IndexName: "dense-test",
	})
	require.NoError(t, err)
	return store
}

func TestUpsertSendsNDJSONRecords(t *testing.T) {
	var gotPath, gotContentType, gotAPIKey string
	var gotLines []map[string]any

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAPIKey = r.Header.Get("Api-Key")

		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			var line map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
			gotLines = append(gotLines, line)
		}
		w.WriteHeader(http.StatusOK)
	}))

	err := store.Upsert(context.Background(), []driven.VectorRecord{
		{
			Key:  "doc1#0",
			Text: "First chunk.",
			Metadata: domain.VectorMetadata{
				FileID:     "doc1",
				FileName:   "Doc One",
				FileType:   domain.FileTypeDocs,
				ChunkIndex: 0,
			},
		},
		{
			Key:  "doc1#1",
			Text: "Second chunk.",
			Metadata: domain.VectorMetadata{
				FileID:     "doc1",
				FileName:   "Doc One",
				FileType:   domain.FileTypeDocs,
				ChunkIndex: 1,
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/records/namespaces/docs/upsert", gotPath)
	assert.Equal(t, "application/x-ndjson", gotContentType)
	assert.Equal(t, "test-key", gotAPIKey)

	require.Len(t, gotLines, 2)
	assert.Equal(t, "doc1#0", gotLines[0]["_id"])
	assert.Equal(t, "First chunk.", gotLines[0]["text"])
	assert.Equal(t, "doc1", gotLines[0]["file_id"])
	assert.Equal(t, float64(1), gotLines[1]["chunk_index"])
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	called := false
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	require.NoError(t, store.Upsert(context.Background(), nil))
	assert.False(t, called)
}

func TestQueryMapsHitsAndFilter(t *testing.T) {
	var gotReq searchRequest

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/records/namespaces/docs/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"hits": []map[string]any{
					{
						"_id":    "doc1#0",
						"_score": 0.91,
						"fields": map[string]any{
							"text":        "First chunk.",
							"file_id":     "doc1",
							"file_name":   "Doc One",
							"file_type":   "docs",
							"chunk_index": float64(0),
						},
					},
					{
						"_id":    "doc2#3",
						"_score": 0.42,
						"fields": map[string]any{
							"text":        "Another chunk.",
							"file_id":     "doc2",
							"file_type":   "sheets",
							"chunk_index": float64(3),
						},
					},
				},
			},
		})
	}))

	hits, err := store.Query(context.Background(), "quarterly plan", 8,
		driven.QueryFilter{FileTypes: []domain.FileType{domain.FileTypeDocs, domain.FileTypeSheets}})
	require.NoError(t, err)

	assert.Equal(t, "quarterly plan", gotReq.Query.Inputs["text"])
	assert.Equal(t, 8, gotReq.Query.TopK)
	require.NotNil(t, gotReq.Query.Filter)
	assert.Contains(t, gotReq.Query.Filter, "file_type")

	require.Len(t, hits, 2)
	assert.Equal(t, "doc1#0", hits[0].Key)
	assert.Equal(t, 0.91, hits[0].Score)
	assert.Equal(t, "First chunk.", hits[0].Text)
	assert.Equal(t, "doc1", hits[0].Metadata.FileID)
	assert.Equal(t, domain.FileTypeSheets, hits[1].Metadata.FileType)
	assert.Equal(t, 3, hits[1].Metadata.ChunkIndex)
}

func TestDeleteDocumentListsByPrefixThenDeletes(t *testing.T) {
	var gotPrefixes []string
	var deletedIDs []string

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vectors/list":
			gotPrefixes = append(gotPrefixes, r.URL.Query().Get("prefix"))
			json.NewEncoder(w).Encode(map[string]any{
				"vectors": []map[string]string{
					{"id": "doc1#0"}, {"id": "doc1#1"}, {"id": "doc1#2"},
				},
			})
		case "/vectors/delete":
			var req struct {
				IDs []string `json:"ids"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			deletedIDs = append(deletedIDs, req.IDs...)
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	require.NoError(t, store.DeleteDocument(context.Background(), "doc1"))

	assert.Equal(t, []string{"doc1#"}, gotPrefixes)
	assert.Equal(t, []string{"doc1#0", "doc1#1", "doc1#2"}, deletedIDs)
}

func TestListDocumentIDsPaginatesAndExcludesMetadata(t *testing.T) {
	calls := 0
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/list", r.URL.Path)
		calls++

		if r.URL.Query().Get("paginationToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"vectors": []map[string]string{
					{"id": "doc1#0"}, {"id": "doc1#1"}, {"id": domain.MetadataKey},
				},
				"pagination": map[string]string{"next": "page2"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"vectors": []map[string]string{
				{"id": "doc2#0"},
			},
		})
	}))

	ids, err := store.ListDocumentIDs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"doc1", "doc2"}, ids)
}

func TestStatsReportsVectorCount(t *testing.T) {
	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/describe_index_stats", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"totalVectorCount": 1234})
	}))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dense-test", stats.Name)
	assert.Equal(t, 1234, stats.VectorCount)
}

func TestQueryErrorsCarryTheTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited is transient", status: http.StatusTooManyRequests, want: domain.ErrTransient},
		{name: "server error is transient", status: http.StatusServiceUnavailable, want: domain.ErrTransient},
		{name: "unauthorized is permanent", status: http.StatusUnauthorized, want: domain.ErrPermanent},
		{name: "bad request is permanent", status: http.StatusBadRequest, want: domain.ErrPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"message": "nope"})
			}))

			_, err := store.Query(context.Background(), "q", 5, driven.QueryFilter{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestNewStoreRequiresAPIKeyAndHost(t *testing.T) {
	_, err := NewStore(Config{Host: "https://idx.example"})
	assert.Error(t, err)

	_, err = NewStore(Config{APIKey: "k"})
	assert.Error(t, err)
}
