package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// listPageSize is the id-listing page size.
const listPageSize = 100

// Store adapts one Pinecone index with integrated embedding to the
// vector store port. Two instances back the engine: one on a dense
// index, one on a sparse index; the adapter is identical for both.
type Store struct {
	client    *Client
	indexName string
}

// NewStore creates a vector store against the configured index.
func NewStore(cfg Config) (*Store, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{client: client, indexName: cfg.IndexName}, nil
}

// upsertRecord is one line of the NDJSON records payload. Metadata is
// kept flat so the store can filter on it.
type upsertRecord struct {
	ID           string `json:"_id"`
	Text         string `json:"text"`
	FileID       string `json:"file_id"`
	FileName     string `json:"file_name"`
	FileType     string `json:"file_type"`
	ChunkIndex   int    `json:"chunk_index"`
	ModifiedTime string `json:"modified_time,omitempty"`
	WebViewLink  string `json:"web_view_link,omitempty"`
}

// Upsert writes a batch of records. The index's hosted model embeds the
// text server-side.
func (s *Store) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, r := range records {
		line := upsertRecord{
			ID:           r.Key,
			Text:         r.Text,
			FileID:       r.Metadata.FileID,
			FileName:     r.Metadata.FileName,
			FileType:     string(r.Metadata.FileType),
			ChunkIndex:   r.Metadata.ChunkIndex,
			ModifiedTime: r.Metadata.ModifiedTime,
			WebViewLink:  r.Metadata.WebViewLink,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode record %s: %w", r.Key, err)
		}
	}

	path := "/records/namespaces/" + url.PathEscape(s.client.namespace) + "/upsert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.host+path, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", s.client.apiKey)
	req.Header.Set("X-Pinecone-Api-Version", DefaultAPIVersion)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := s.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone upsert (status %d): %s: %w",
			resp.StatusCode, errorMessage(respBody), domain.ClassifyStatus(resp.StatusCode))
	}
	return nil
}

// DeleteKeys removes the given vector keys.
func (s *Store) DeleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	payload := map[string]any{
		"ids":       keys,
		"namespace": s.client.namespace,
	}
	return s.client.postJSON(ctx, "/vectors/delete", payload, nil)
}

// DeleteDocument removes every vector under the document's key prefix.
// The data plane has no prefix delete, so ids are listed by prefix and
// deleted page by page.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	prefix := domain.KeyPrefix(documentID)

	token := ""
	for {
		ids, next, err := s.listPage(ctx, prefix, token)
		if err != nil {
			return err
		}
		if err := s.DeleteKeys(ctx, ids); err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		token = next
	}
}

// searchRequest is the integrated-embedding search payload.
type searchRequest struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields"`
}

type searchQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
	Filter map[string]any    `json:"filter,omitempty"`
}

// searchResponse is the hit envelope returned by the records search.
type searchResponse struct {
	Result struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Fields map[string]any `json:"fields"`
		} `json:"hits"`
	} `json:"result"`
}

// Query returns the topK best matches for the query text.
func (s *Store) Query(ctx context.Context, text string, topK int, filter driven.QueryFilter) ([]driven.QueryHit, error) {
	req := searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": text},
			TopK:   topK,
		},
		Fields: []string{"text", "file_id", "file_name", "file_type", "chunk_index", "modified_time", "web_view_link"},
	}
	if len(filter.FileTypes) > 0 {
		types := make([]string, len(filter.FileTypes))
		for i, ft := range filter.FileTypes {
			types[i] = string(ft)
		}
		req.Query.Filter = map[string]any{"file_type": map[string]any{"$in": types}}
	}

	var resp searchResponse
	path := "/records/namespaces/" + url.PathEscape(s.client.namespace) + "/search"
	if err := s.client.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.QueryHit, 0, len(resp.Result.Hits))
	for _, h := range resp.Result.Hits {
		hits = append(hits, driven.QueryHit{
			Key:      h.ID,
			Score:    h.Score,
			Text:     fieldString(h.Fields, "text"),
			Metadata: metadataFromFields(h.Fields),
		})
	}
	return hits, nil
}

// ListDocumentIDs pages through the index's vector ids and returns the
// distinct document ids, excluding the reserved metadata record.
func (s *Store) ListDocumentIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string

	token := ""
	for {
		keys, next, err := s.listPage(ctx, "", token)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			if key == domain.MetadataKey {
				continue
			}
			docID, _, err := domain.ParseVectorKey(key)
			if err != nil {
				continue
			}
			if !seen[docID] {
				seen[docID] = true
				ids = append(ids, docID)
			}
		}
		if next == "" {
			return ids, nil
		}
		token = next
	}
}

// Stats returns index statistics.
func (s *Store) Stats(ctx context.Context) (driven.IndexStats, error) {
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := s.client.postJSON(ctx, "/describe_index_stats", map[string]any{}, &resp); err != nil {
		return driven.IndexStats{}, err
	}
	return driven.IndexStats{Name: s.indexName, VectorCount: resp.TotalVectorCount}, nil
}

// listPage fetches one page of vector ids, optionally prefix-filtered.
func (s *Store) listPage(ctx context.Context, prefix, token string) ([]string, string, error) {
	query := url.Values{}
	query.Set("namespace", s.client.namespace)
	query.Set("limit", strconv.Itoa(listPageSize))
	if prefix != "" {
		query.Set("prefix", prefix)
	}
	if token != "" {
		query.Set("paginationToken", token)
	}

	var resp struct {
		Vectors []struct {
			ID string `json:"id"`
		} `json:"vectors"`
		Pagination struct {
			Next string `json:"next"`
		} `json:"pagination"`
	}
	if err := s.client.getJSON(ctx, "/vectors/list", query, &resp); err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Vectors))
	for _, v := range resp.Vectors {
		ids = append(ids, v.ID)
	}
	return ids, resp.Pagination.Next, nil
}

func metadataFromFields(fields map[string]any) domain.VectorMetadata {
	chunkIndex := 0
	if v, ok := fields["chunk_index"].(float64); ok {
		chunkIndex = int(v)
	}
	return domain.VectorMetadata{
		FileID:       fieldString(fields, "file_id"),
		FileName:     fieldString(fields, "file_name"),
		FileType:     domain.FileType(fieldString(fields, "file_type")),
		ChunkIndex:   chunkIndex,
		ModifiedTime: fieldString(fields, "modified_time"),
		WebViewLink:  fieldString(fields, "web_view_link"),
	}
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
